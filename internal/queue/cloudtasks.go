package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/durationpb"
)

// Extraction of a large document can run for minutes; give each delivery the
// full OCR timeout plus LLM retry budget before Cloud Tasks re-dispatches.
const dispatchDeadline = 10 * time.Minute

// CloudTasksQueue delivers ProcessTask payloads to the task handler over HTTP
// push with an OIDC token minted for the invoker service account.
type CloudTasksQueue struct {
	client     *cloudtasks.Client
	queuePath  string
	handlerURL string
	invokerSA  string
}

// NewCloudTasksQueue wraps an existing Cloud Tasks client. queuePath is the
// full resource name (projects/P/locations/L/queues/Q); handlerURL is the
// absolute URL of the process-document endpoint.
func NewCloudTasksQueue(client *cloudtasks.Client, queuePath, handlerURL, invokerSA string) *CloudTasksQueue {
	return &CloudTasksQueue{
		client:     client,
		queuePath:  queuePath,
		handlerURL: handlerURL,
		invokerSA:  invokerSA,
	}
}

func (q *CloudTasksQueue) Enqueue(ctx context.Context, task ProcessTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	httpReq := &taskspb.HttpRequest{
		Url:        q.handlerURL,
		HttpMethod: taskspb.HttpMethod_POST,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
	if q.invokerSA != "" {
		httpReq.AuthorizationHeader = &taskspb.HttpRequest_OidcToken{
			OidcToken: &taskspb.OidcToken{
				ServiceAccountEmail: q.invokerSA,
				Audience:            q.handlerURL,
			},
		}
	}

	created, err := q.client.CreateTask(ctx, &taskspb.CreateTaskRequest{
		Parent: q.queuePath,
		Task: &taskspb.Task{
			MessageType:      &taskspb.Task_HttpRequest{HttpRequest: httpReq},
			DispatchDeadline: durationpb.New(dispatchDeadline),
		},
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	log.WithFields(log.Fields{
		"document_id": task.DocumentID,
		"task":        created.GetName(),
	}).Info("enqueued processing task")
	return nil
}
