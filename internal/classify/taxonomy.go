package classify

// Category is one slot in the fixed moderation taxonomy.
type Category string

const (
	// Nudity family.
	CategoryNudity                    Category = "nudity"
	CategoryGraphicMaleNudity         Category = "graphic_male_nudity"
	CategoryGraphicFemaleNudity       Category = "graphic_female_nudity"
	CategorySexualActivity            Category = "sexual_activity"
	CategoryIllustratedExplicitNudity Category = "illustrated_explicit_nudity"
	CategoryAdultToys                 Category = "adult_toys"

	// Suggestive family.
	CategoryFemaleSwimwearOrUnderwear Category = "female_swimwear_or_underwear"
	CategoryMaleSwimwearOrUnderwear   Category = "male_swimwear_or_underwear"
	CategoryPartialNudity             Category = "partial_nudity"
	CategoryBarechestedMale           Category = "barechested_male"
	CategoryRevealingClothes          Category = "revealing_clothes"
	CategorySexualSituations          Category = "sexual_situations"

	// Violence family.
	CategoryGraphicViolenceOrGore Category = "graphic_violence_or_gore"
	CategoryPhysicalViolence      Category = "physical_violence"
	CategoryWeaponViolence        Category = "weapon_violence"
	CategoryWeapons               Category = "weapons"
	CategorySelfInjury            Category = "self_injury"

	// Visually disturbing family.
	CategoryEmaciatedBodies    Category = "emaciated_bodies"
	CategoryCorpses            Category = "corpses"
	CategoryHanging            Category = "hanging"
	CategoryAirCrash           Category = "air_crash"
	CategoryExplosionsOrBlasts Category = "explosions_or_blasts"

	// Rude gestures family.
	CategoryMiddleFinger Category = "middle_finger"

	// Drugs family.
	CategoryDrugProducts      Category = "drug_products"
	CategoryDrugUse           Category = "drug_use"
	CategoryPills             Category = "pills"
	CategoryDrugParaphernalia Category = "drug_paraphernalia"

	// Tobacco family.
	CategoryTobaccoProducts Category = "tobacco_products"
	CategorySmoking         Category = "smoking"

	// Alcohol family.
	CategoryDrinking           Category = "drinking"
	CategoryAlcoholicBeverages Category = "alcoholic_beverages"

	// Gambling family.
	CategoryGambling Category = "gambling"

	// Hate symbols family.
	CategoryNaziParty      Category = "nazi_party"
	CategoryWhiteSupremacy Category = "white_supremacy"
	CategoryExtremist      Category = "extremist"
)

// TaxonomyVersion identifies the shipped label table so a revised mapping can
// be distinguished in emitted events.
const TaxonomyVersion = "v1"

// Taxonomy is a closed, ordered set of category keys together with the exact
// label strings the classification service reports into each of them. Lookups
// are case- and whitespace-sensitive.
type Taxonomy struct {
	Categories []Category
	Labels     map[string]Category
}

// Default is the moderation taxonomy shipped with the service. The label
// strings are reproduced verbatim from the deployed table, including two
// spellings that differ from Amazon's published label names and the
// alcoholic_beverages category that no current label maps into.
var Default = Taxonomy{
	Categories: []Category{
		CategoryNudity,
		CategoryGraphicMaleNudity,
		CategoryGraphicFemaleNudity,
		CategorySexualActivity,
		CategoryIllustratedExplicitNudity,
		CategoryAdultToys,
		CategoryFemaleSwimwearOrUnderwear,
		CategoryMaleSwimwearOrUnderwear,
		CategoryPartialNudity,
		CategoryBarechestedMale,
		CategoryRevealingClothes,
		CategorySexualSituations,
		CategoryGraphicViolenceOrGore,
		CategoryPhysicalViolence,
		CategoryWeaponViolence,
		CategoryWeapons,
		CategorySelfInjury,
		CategoryEmaciatedBodies,
		CategoryCorpses,
		CategoryHanging,
		CategoryAirCrash,
		CategoryExplosionsOrBlasts,
		CategoryMiddleFinger,
		CategoryDrugProducts,
		CategoryDrugUse,
		CategoryPills,
		CategoryDrugParaphernalia,
		CategoryTobaccoProducts,
		CategorySmoking,
		CategoryDrinking,
		CategoryAlcoholicBeverages,
		CategoryGambling,
		CategoryNaziParty,
		CategoryWhiteSupremacy,
		CategoryExtremist,
	},
	Labels: map[string]Category{
		"Nudity":                       CategoryNudity,
		"Graphic Male Nudity":          CategoryGraphicMaleNudity,
		"Graphic Female Nudity":        CategoryGraphicFemaleNudity,
		"Sexual Activity":              CategorySexualActivity,
		"Illustrated Explicity Nudity": CategoryIllustratedExplicitNudity,
		"Adult Toys":                   CategoryAdultToys,
		"Female Swimwear Or Underwear": CategoryFemaleSwimwearOrUnderwear,
		"Male Swimwear Or Underwear":   CategoryMaleSwimwearOrUnderwear,
		"Partial Nudity":               CategoryPartialNudity,
		"Barechested Male":             CategoryBarechestedMale,
		"Revealing Clothes":            CategoryRevealingClothes,
		"Sexual Situations":            CategorySexualSituations,
		"Graphic Violence Or Gore":     CategoryGraphicViolenceOrGore,
		"Physical Violence":            CategoryPhysicalViolence,
		"Weapon Violence":              CategoryWeaponViolence,
		"Weapons":                      CategoryWeapons,
		"Self Injury":                  CategorySelfInjury,
		"Emaciated Bodies":             CategoryEmaciatedBodies,
		"Corpses":                      CategoryCorpses,
		"Hanging":                      CategoryHanging,
		"Air Crash":                    CategoryAirCrash,
		"Explosion Or Blasts":          CategoryExplosionsOrBlasts,
		"Middle Finger":                CategoryMiddleFinger,
		"Drug Products":                CategoryDrugProducts,
		"Drug Use":                     CategoryDrugUse,
		"Pills":                        CategoryPills,
		"Drug Paraphernalia":           CategoryDrugParaphernalia,
		"Tobacco Products":             CategoryTobaccoProducts,
		"Smoking":                      CategorySmoking,
		"Drinking":                     CategoryDrinking,
		"Gambling":                     CategoryGambling,
		"Nazi Party":                   CategoryNaziParty,
		"White Supremacy":              CategoryWhiteSupremacy,
		"Extremist":                    CategoryExtremist,
	},
}
