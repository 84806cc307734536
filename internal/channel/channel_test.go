package channel_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/modflow/internal/channel"
)

type fakeSNS struct {
	createErr     error
	subscribeErr  error
	deleteErr     error
	subscriptions []string
	deletedTopics []string
}

func (f *fakeSNS) CreateTopic(_ context.Context, in *sns.CreateTopicInput, _ ...func(*sns.Options)) (*sns.CreateTopicOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &sns.CreateTopicOutput{TopicArn: aws.String("arn:aws:sns:eu-central-1:123:" + *in.Name)}, nil
}

func (f *fakeSNS) Subscribe(_ context.Context, in *sns.SubscribeInput, _ ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.subscriptions = append(f.subscriptions, *in.Endpoint)
	return &sns.SubscribeOutput{}, nil
}

func (f *fakeSNS) DeleteTopic(_ context.Context, in *sns.DeleteTopicInput, _ ...func(*sns.Options)) (*sns.DeleteTopicOutput, error) {
	f.deletedTopics = append(f.deletedTopics, *in.TopicArn)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &sns.DeleteTopicOutput{}, nil
}

type fakeSQS struct {
	createErr     error
	setAttrErr    error
	deleteErr     error
	policy        string
	deletedQueues []string
}

func (f *fakeSQS) CreateQueue(_ context.Context, in *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &sqs.CreateQueueOutput{QueueUrl: aws.String("https://sqs/" + *in.QueueName)}, nil
}

func (f *fakeSQS) GetQueueAttributes(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{"QueueArn": "arn:aws:sqs:eu-central-1:123:queue"},
	}, nil
}

func (f *fakeSQS) SetQueueAttributes(_ context.Context, in *sqs.SetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error) {
	if f.setAttrErr != nil {
		return nil, f.setAttrErr
	}
	f.policy = in.Attributes["Policy"]
	return &sqs.SetQueueAttributesOutput{}, nil
}

func (f *fakeSQS) DeleteQueue(_ context.Context, in *sqs.DeleteQueueInput, _ ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error) {
	f.deletedQueues = append(f.deletedQueues, *in.QueueUrl)
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &sqs.DeleteQueueOutput{}, nil
}

type fakeIAM struct {
	createRoleErr   error
	createPolicyErr error
	attachErr       error
	assumeDoc       string
	policyDoc       string
	attached        []string
	detached        []string
	deletedPolicies []string
	deletedRoles    []string
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if f.createRoleErr != nil {
		return nil, f.createRoleErr
	}
	f.assumeDoc = *in.AssumeRolePolicyDocument
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{Arn: aws.String("arn:aws:iam::123:role/" + *in.RoleName)}}, nil
}

func (f *fakeIAM) CreatePolicy(_ context.Context, in *iam.CreatePolicyInput, _ ...func(*iam.Options)) (*iam.CreatePolicyOutput, error) {
	if f.createPolicyErr != nil {
		return nil, f.createPolicyErr
	}
	f.policyDoc = *in.PolicyDocument
	return &iam.CreatePolicyOutput{Policy: &iamtypes.Policy{Arn: aws.String("arn:aws:iam::123:policy/" + *in.PolicyName)}}, nil
}

func (f *fakeIAM) AttachRolePolicy(_ context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	if f.attachErr != nil {
		return nil, f.attachErr
	}
	f.attached = append(f.attached, *in.PolicyArn)
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeIAM) DetachRolePolicy(_ context.Context, in *iam.DetachRolePolicyInput, _ ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error) {
	f.detached = append(f.detached, *in.PolicyArn)
	return &iam.DetachRolePolicyOutput{}, nil
}

func (f *fakeIAM) DeletePolicy(_ context.Context, in *iam.DeletePolicyInput, _ ...func(*iam.Options)) (*iam.DeletePolicyOutput, error) {
	f.deletedPolicies = append(f.deletedPolicies, *in.PolicyArn)
	return &iam.DeletePolicyOutput{}, nil
}

func (f *fakeIAM) DeleteRole(_ context.Context, in *iam.DeleteRoleInput, _ ...func(*iam.Options)) (*iam.DeleteRoleOutput, error) {
	f.deletedRoles = append(f.deletedRoles, *in.RoleName)
	return &iam.DeleteRoleOutput{}, nil
}

func newManager(snsAPI *fakeSNS, sqsAPI *fakeSQS, iamAPI *fakeIAM) *channel.Manager {
	return channel.NewManager(channel.Params{
		SNS:       snsAPI,
		SQS:       sqsAPI,
		IAM:       iamAPI,
		Publisher: "rekognition.amazonaws.com",
		Logger:    zap.NewNop(),
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	snsAPI := &fakeSNS{}
	sqsAPI := &fakeSQS{}
	iamAPI := &fakeIAM{}
	m := newManager(snsAPI, sqsAPI, iamAPI)

	ch, err := m.Open(t.Context(), "mod-session-1")
	require.NoError(t, err)
	require.Equal(t, "arn:aws:sns:eu-central-1:123:mod-session-1", ch.TopicARN)
	require.Equal(t, "https://sqs/mod-session-1", ch.QueueURL)
	require.Equal(t, "arn:aws:iam::123:role/mod-session-1", ch.RoleARN)

	// Queue only accepts publishes routed through the topic.
	var queuePolicy struct {
		Statement []struct {
			Action    string
			Resource  string
			Condition map[string]map[string]string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(sqsAPI.policy), &queuePolicy))
	require.Len(t, queuePolicy.Statement, 1)
	require.Equal(t, "SQS:SendMessage", queuePolicy.Statement[0].Action)
	require.Equal(t, ch.QueueARN, queuePolicy.Statement[0].Resource)
	require.Equal(t, ch.TopicARN, queuePolicy.Statement[0].Condition["ArnEquals"]["aws:SourceArn"])

	require.Equal(t, []string{ch.QueueARN}, snsAPI.subscriptions)
	require.Contains(t, iamAPI.assumeDoc, "rekognition.amazonaws.com")
	require.Contains(t, iamAPI.policyDoc, ch.TopicARN)
	require.Equal(t, []string{ch.PolicyARN}, iamAPI.attached)

	addr := ch.Address()
	require.Equal(t, ch.TopicARN, addr.TopicARN)
	require.Equal(t, ch.RoleARN, addr.RoleARN)
}

func TestOpenRollsBackOnPartialFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("policy quota exceeded")
	snsAPI := &fakeSNS{}
	sqsAPI := &fakeSQS{}
	iamAPI := &fakeIAM{createPolicyErr: boom}
	m := newManager(snsAPI, sqsAPI, iamAPI)

	ch, err := m.Open(t.Context(), "mod-session-2")
	require.Nil(t, ch)

	var perr *channel.ProvisionError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "policy", perr.Resource)
	require.ErrorIs(t, err, boom)

	// Everything created before the failure is gone again.
	require.Len(t, snsAPI.deletedTopics, 1)
	require.Len(t, sqsAPI.deletedQueues, 1)
	require.Equal(t, []string{"mod-session-2"}, iamAPI.deletedRoles)
	require.Empty(t, iamAPI.deletedPolicies)
}

func TestOpenTopicFailureCreatesNothing(t *testing.T) {
	t.Parallel()

	snsAPI := &fakeSNS{createErr: errors.New("denied")}
	sqsAPI := &fakeSQS{}
	iamAPI := &fakeIAM{}
	m := newManager(snsAPI, sqsAPI, iamAPI)

	_, err := m.Open(t.Context(), "mod-session-3")
	var perr *channel.ProvisionError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "topic", perr.Resource)
	require.Empty(t, sqsAPI.deletedQueues)
	require.Empty(t, snsAPI.deletedTopics)
	require.Empty(t, iamAPI.deletedRoles)
}

func TestCloseBestEffort(t *testing.T) {
	t.Parallel()

	snsAPI := &fakeSNS{}
	sqsAPI := &fakeSQS{}
	iamAPI := &fakeIAM{}
	m := newManager(snsAPI, sqsAPI, iamAPI)

	ch, err := m.Open(t.Context(), "mod-session-4")
	require.NoError(t, err)

	// A failed queue deletion must not stop the topic deletion.
	queueErr := errors.New("queue busy")
	sqsAPI.deleteErr = queueErr

	err = m.Close(t.Context(), ch)
	require.ErrorIs(t, err, queueErr)
	require.Equal(t, []string{ch.PolicyARN}, iamAPI.detached)
	require.Equal(t, []string{ch.PolicyARN}, iamAPI.deletedPolicies)
	require.Equal(t, []string{"mod-session-4"}, iamAPI.deletedRoles)
	require.Equal(t, []string{ch.QueueURL}, sqsAPI.deletedQueues)
	require.Equal(t, []string{ch.TopicARN}, snsAPI.deletedTopics)
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()

	snsAPI := &fakeSNS{}
	sqsAPI := &fakeSQS{}
	iamAPI := &fakeIAM{}
	m := newManager(snsAPI, sqsAPI, iamAPI)

	ch, err := m.Open(t.Context(), "mod-session-5")
	require.NoError(t, err)

	require.NoError(t, m.Close(t.Context(), ch))
	require.NoError(t, m.Close(t.Context(), ch))
	require.Len(t, snsAPI.deletedTopics, 1)
	require.Len(t, sqsAPI.deletedQueues, 1)
	require.Len(t, iamAPI.deletedRoles, 1)

	require.NoError(t, m.Close(t.Context(), nil))
}
