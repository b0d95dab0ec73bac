package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// FallbackMetric is the CloudWatch metric counting degraded collaborator lookups.
const FallbackMetric = "CollaboratorFallback"

// MetricsRecorder publishes one data point per degraded collaborator lookup.
type MetricsRecorder struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewMetricsRecorder returns a recorder writing to the given CloudWatch namespace.
func NewMetricsRecorder(client CloudWatchAPI, namespace string) *MetricsRecorder {
	return &MetricsRecorder{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// RecordFallback emits CollaboratorFallback=1 with a Collaborator dimension.
func (m *MetricsRecorder) RecordFallback(ctx context.Context, collaborator string) error {
	now := m.nowFunc()
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString(FallbackMetric),
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitCount,
				Value:      float64Ptr(1),
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Collaborator"), Value: awsString(collaborator)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func float64Ptr(v float64) *float64 { return &v }
