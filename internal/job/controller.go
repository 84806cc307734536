// Package job drives one asynchronous content moderation job: start it
// against the remote classification service, wait on the notification queue
// for its completion, and drain its results.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/your-org/modflow/internal/channel"
	"github.com/your-org/modflow/internal/classify"
)

// RekognitionAPI is the slice of the Rekognition client the controller uses.
type RekognitionAPI interface {
	StartContentModeration(ctx context.Context, in *rekognition.StartContentModerationInput, optFns ...func(*rekognition.Options)) (*rekognition.StartContentModerationOutput, error)
	GetContentModeration(ctx context.Context, in *rekognition.GetContentModerationInput, optFns ...func(*rekognition.Options)) (*rekognition.GetContentModerationOutput, error)
}

// QueueAPI is the slice of the SQS client the controller uses for polling.
type QueueAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// MediaRef points at staged input in object storage. The controller passes it
// through to the remote service without interpreting it.
type MediaRef struct {
	Bucket string
	Key    string
}

// Status is the terminal completion state reported for a job.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// StartError reports that the remote service rejected a job start.
type StartError struct {
	Media MediaRef
	Err   error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start moderation job on s3://%s/%s: %v", e.Media.Bucket, e.Media.Key, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// CorrelationError reports a completion notification whose job id does not
// match the awaited job. The offending message is left on the queue; its
// receipt handle is carried so an operator can purge it.
type CorrelationError struct {
	Want    string
	Got     string
	Receipt string
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("completion notification for job %q while awaiting job %q", e.Got, e.Want)
}

// TimeoutError reports that no matching terminal notification arrived within
// the deadline. The remote job is left running.
type TimeoutError struct {
	JobID string
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out awaiting completion of job %s: %v", e.JobID, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// FetchError reports a failure retrieving results for a completed job.
type FetchError struct {
	JobID string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch results for job %s: %v", e.JobID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Controller starts, awaits, and collects one remote moderation job at a time.
type Controller struct {
	rek    RekognitionAPI
	queue  QueueAPI
	logger *zap.Logger
}

// NewController constructs a job Controller.
func NewController(rek RekognitionAPI, queue QueueAPI, logger *zap.Logger) *Controller {
	return &Controller{rek: rek, queue: queue, logger: logger}
}

// Start invokes the remote service's asynchronous start operation. Detections
// below minConfidence (0-100) are not reported by the service. No retry here;
// retry policy belongs to the caller.
func (c *Controller) Start(ctx context.Context, media MediaRef, addr channel.Address, minConfidence float32) (string, error) {
	out, err := c.rek.StartContentModeration(ctx, &rekognition.StartContentModerationInput{
		Video: &rektypes.Video{
			S3Object: &rektypes.S3Object{
				Bucket: aws.String(media.Bucket),
				Name:   aws.String(media.Key),
			},
		},
		MinConfidence: aws.Float32(minConfidence),
		NotificationChannel: &rektypes.NotificationChannel{
			SNSTopicArn: aws.String(addr.TopicARN),
			RoleArn:     aws.String(addr.RoleARN),
		},
	})
	if err != nil {
		return "", &StartError{Media: media, Err: err}
	}
	jobID := aws.ToString(out.JobId)
	c.logger.Info("moderation job started",
		zap.String("job_id", jobID),
		zap.String("bucket", media.Bucket),
		zap.String("key", media.Key))
	return jobID, nil
}

// snsEnvelope is the outer transport envelope the queue delivers; Message is
// itself a JSON document.
type snsEnvelope struct {
	Message string `json:"Message"`
}

type completionNotice struct {
	JobID  string `json:"JobId"`
	Status string `json:"Status"`
}

// Await blocks until a terminal notification for jobID arrives on the queue,
// long-polling up to pollInterval per receive. A matching message is deleted
// before its status is returned; a mismatched job id fails fast with
// CorrelationError and leaves the message on the queue. The context's
// deadline bounds the wait; without one, Await polls until a terminal
// notification arrives or the context is canceled.
func (c *Controller) Await(ctx context.Context, queueURL, jobID string, pollInterval time.Duration) (Status, error) {
	wait := int32(pollInterval / time.Second)
	if wait < 1 {
		wait = 1
	}
	if wait > 20 {
		// SQS long-poll ceiling.
		wait = 20
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", awaitErr(jobID, err)
		}
		out, err := c.queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     wait,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", awaitErr(jobID, ctx.Err())
			}
			return "", fmt.Errorf("receive completion notification for job %s: %w", jobID, err)
		}
		c.logger.Debug("polled notification queue",
			zap.String("job_id", jobID),
			zap.Int("messages", len(out.Messages)))
		if len(out.Messages) == 0 {
			continue
		}

		msg := out.Messages[0]
		var env snsEnvelope
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &env); err != nil {
			return "", fmt.Errorf("decode notification envelope for job %s: %w", jobID, err)
		}
		var notice completionNotice
		if err := json.Unmarshal([]byte(env.Message), &notice); err != nil {
			return "", fmt.Errorf("decode completion notification for job %s: %w", jobID, err)
		}
		if notice.JobID != jobID {
			return "", &CorrelationError{
				Want:    jobID,
				Got:     notice.JobID,
				Receipt: aws.ToString(msg.ReceiptHandle),
			}
		}

		if _, err := c.queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			// The status is terminal either way; a redelivered message only
			// matters to a session that no longer exists.
			c.logger.Warn("delete completion notification",
				zap.String("job_id", jobID), zap.Error(err))
		}
		c.logger.Info("moderation job finished",
			zap.String("job_id", jobID),
			zap.String("status", notice.Status))
		return Status(notice.Status), nil
	}
}

func awaitErr(jobID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{JobID: jobID, Err: err}
	}
	return fmt.Errorf("await completion of job %s: %w", jobID, err)
}

// Fetch retrieves all detections for a SUCCEEDED job, draining every result
// page. For a FAILED job it returns nothing without calling the remote
// service.
func (c *Controller) Fetch(ctx context.Context, jobID string, status Status) ([]classify.Detection, error) {
	if status != StatusSucceeded {
		return nil, nil
	}

	var detections []classify.Detection
	var nextToken *string
	for {
		out, err := c.rek.GetContentModeration(ctx, &rekognition.GetContentModerationInput{
			JobId:     aws.String(jobID),
			NextToken: nextToken,
		})
		if err != nil {
			return nil, &FetchError{JobID: jobID, Err: err}
		}
		for _, d := range out.ModerationLabels {
			if d.ModerationLabel == nil {
				continue
			}
			detections = append(detections, classify.Detection{
				Label:      aws.ToString(d.ModerationLabel.Name),
				Confidence: aws.ToFloat32(d.ModerationLabel.Confidence),
				Timestamp:  time.Duration(d.Timestamp) * time.Millisecond,
			})
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	c.logger.Info("moderation results fetched",
		zap.String("job_id", jobID),
		zap.Int("detections", len(detections)))
	return detections, nil
}
