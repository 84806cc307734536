// Package channel provisions and tears down the ephemeral notification
// channel a moderation job publishes its completion into: an SNS topic, an
// SQS queue subscribed to it, and the IAM role that lets the classification
// service publish to the topic.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// SNSAPI is the slice of the SNS client the manager uses.
type SNSAPI interface {
	CreateTopic(ctx context.Context, in *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Subscribe(ctx context.Context, in *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	DeleteTopic(ctx context.Context, in *sns.DeleteTopicInput, optFns ...func(*sns.Options)) (*sns.DeleteTopicOutput, error)
}

// SQSAPI is the slice of the SQS client the manager uses.
type SQSAPI interface {
	CreateQueue(ctx context.Context, in *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SetQueueAttributes(ctx context.Context, in *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
	DeleteQueue(ctx context.Context, in *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
}

// IAMAPI is the slice of the IAM client the manager uses.
type IAMAPI interface {
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	CreatePolicy(ctx context.Context, in *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error)
	AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, in *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	DeletePolicy(ctx context.Context, in *iam.DeletePolicyInput, optFns ...func(*iam.Options)) (*iam.DeletePolicyOutput, error)
	DeleteRole(ctx context.Context, in *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

// Channel is a fully provisioned notification channel. It is exclusively
// owned by one moderation session and must be closed when the session ends.
type Channel struct {
	Name      string
	TopicARN  string
	QueueURL  string
	QueueARN  string
	RoleARN   string
	PolicyARN string

	closed bool
}

// Address is the part of the channel the remote classification service needs
// in order to publish completion notifications.
type Address struct {
	TopicARN string
	RoleARN  string
}

// Address returns the channel's publishing address.
func (c *Channel) Address() Address {
	return Address{TopicARN: c.TopicARN, RoleARN: c.RoleARN}
}

// ProvisionError reports a failed channel setup. Sub-resources created before
// the failure have already been rolled back.
type ProvisionError struct {
	Resource string
	Err      error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision notification channel: create %s: %v", e.Resource, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Manager provisions and tears down notification channels.
type Manager struct {
	sns       SNSAPI
	sqs       SQSAPI
	iam       IAMAPI
	publisher string
	logger    *zap.Logger
}

type Params struct {
	SNS SNSAPI
	SQS SQSAPI
	IAM IAMAPI
	// Publisher is the service principal granted publish access to the
	// topic, e.g. "rekognition.amazonaws.com".
	Publisher string
	Logger    *zap.Logger
}

// NewManager constructs a channel Manager.
func NewManager(p Params) *Manager {
	return &Manager{
		sns:       p.SNS,
		sqs:       p.SQS,
		iam:       p.IAM,
		publisher: p.Publisher,
		logger:    p.Logger,
	}
}

type policyStatement struct {
	Sid       string         `json:"Sid,omitempty"`
	Effect    string         `json:"Effect"`
	Principal map[string]any `json:"Principal,omitempty"`
	Action    string         `json:"Action"`
	Resource  string         `json:"Resource,omitempty"`
	Condition map[string]any `json:"Condition,omitempty"`
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// Open provisions a topic, a queue subscribed to it, and an IAM role plus
// policy allowing the configured publisher to publish to the topic. On any
// sub-resource failure, everything already created is rolled back before the
// ProvisionError is returned.
func (m *Manager) Open(ctx context.Context, name string) (_ *Channel, err error) {
	ch := &Channel{Name: name}
	defer func() {
		if err == nil {
			return
		}
		// Roll back whatever exists; Close skips unset sub-resources.
		if cerr := m.Close(context.WithoutCancel(ctx), ch); cerr != nil {
			m.logger.Error("rollback after failed channel provision",
				zap.String("channel", name), zap.Error(cerr))
		}
	}()

	topic, err := m.sns.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(name)})
	if err != nil {
		return nil, &ProvisionError{Resource: "topic", Err: err}
	}
	ch.TopicARN = aws.ToString(topic.TopicArn)

	queue, err := m.sqs.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			"ReceiveMessageWaitTimeSeconds": "5",
		},
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "queue", Err: err}
	}
	ch.QueueURL = aws.ToString(queue.QueueUrl)

	attrs, err := m.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(ch.QueueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "queue attributes", Err: err}
	}
	ch.QueueARN = attrs.Attributes[string(sqstypes.QueueAttributeNameQueueArn)]

	// Lets the queue receive messages published through the topic, and only
	// through the topic.
	queuePolicy, err := json.Marshal(policyDocument{
		Version: "2008-10-17",
		Statement: []policyStatement{{
			Sid:       "notification-channel",
			Effect:    "Allow",
			Principal: map[string]any{"AWS": "*"},
			Action:    "SQS:SendMessage",
			Resource:  ch.QueueARN,
			Condition: map[string]any{"ArnEquals": map[string]any{"aws:SourceArn": ch.TopicARN}},
		}},
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "queue policy", Err: err}
	}
	_, err = m.sqs.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl:   aws.String(ch.QueueURL),
		Attributes: map[string]string{"Policy": string(queuePolicy)},
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "queue policy", Err: err}
	}

	_, err = m.sns.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(ch.TopicARN),
		Protocol: aws.String("sqs"),
		Endpoint: aws.String(ch.QueueARN),
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "subscription", Err: err}
	}

	// The role the remote service assumes to publish; its ARN travels with
	// every job start.
	assumeDoc, err := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]any{"Service": m.publisher},
			Action:    "sts:AssumeRole",
		}},
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "role", Err: err}
	}
	role, err := m.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(string(assumeDoc)),
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "role", Err: err}
	}
	ch.RoleARN = aws.ToString(role.Role.Arn)

	publishDoc, err := json.Marshal(policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:   "Allow",
			Action:   "SNS:Publish",
			Resource: ch.TopicARN,
		}},
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "policy", Err: err}
	}
	policy, err := m.iam.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(string(publishDoc)),
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "policy", Err: err}
	}
	ch.PolicyARN = aws.ToString(policy.Policy.Arn)

	_, err = m.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(ch.PolicyARN),
	})
	if err != nil {
		return nil, &ProvisionError{Resource: "role policy attachment", Err: err}
	}

	m.logger.Info("notification channel open",
		zap.String("channel", name),
		zap.String("topic_arn", ch.TopicARN),
		zap.String("queue_url", ch.QueueURL))
	return ch, nil
}

// Close tears down the channel's sub-resources: authorization grant first,
// then queue, then topic. Each deletion is attempted even if an earlier one
// fails; failures are aggregated into the returned error. Closing an
// already-closed channel is a no-op.
func (m *Manager) Close(ctx context.Context, ch *Channel) error {
	if ch == nil || ch.closed {
		return nil
	}
	ch.closed = true

	var errs []error
	if ch.PolicyARN != "" {
		if _, err := m.iam.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(ch.Name),
			PolicyArn: aws.String(ch.PolicyARN),
		}); err != nil {
			errs = append(errs, fmt.Errorf("detach role policy %s: %w", ch.PolicyARN, err))
		}
		if _, err := m.iam.DeletePolicy(ctx, &iam.DeletePolicyInput{
			PolicyArn: aws.String(ch.PolicyARN),
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete policy %s: %w", ch.PolicyARN, err))
		}
	}
	if ch.RoleARN != "" {
		if _, err := m.iam.DeleteRole(ctx, &iam.DeleteRoleInput{
			RoleName: aws.String(ch.Name),
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete role %s: %w", ch.Name, err))
		}
	}
	if ch.QueueURL != "" {
		if _, err := m.sqs.DeleteQueue(ctx, &sqs.DeleteQueueInput{
			QueueUrl: aws.String(ch.QueueURL),
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete queue %s: %w", ch.QueueURL, err))
		}
	}
	if ch.TopicARN != "" {
		if _, err := m.sns.DeleteTopic(ctx, &sns.DeleteTopicInput{
			TopicArn: aws.String(ch.TopicARN),
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete topic %s: %w", ch.TopicARN, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close notification channel %s: %w", ch.Name, errors.Join(errs...))
	}
	m.logger.Info("notification channel closed", zap.String("channel", ch.Name))
	return nil
}
