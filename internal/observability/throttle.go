package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"videoscore/internal/throttle"
)

// ThrottleDecisionHook returns a throttle.DecisionHook that counts guard
// decisions per policy, labeled allowed or rejected.
func ThrottleDecisionHook() (throttle.DecisionHook, error) {
	meter := otel.Meter("videoscore/throttle")

	decisions, err := meter.Int64Counter(
		"throttle.decisions",
		metric.WithDescription("Number of request throttle decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	return func(policy string, allowed bool) {
		outcome := "rejected"
		if allowed {
			outcome = "allowed"
		}
		decisions.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("policy", policy),
				attribute.String("outcome", outcome),
			),
		)
	}, nil
}
