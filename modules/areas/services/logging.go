package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
	"github.com/pocotu/oficri-areas/pkg/composables"
)

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	composables.UseLogger(ctx).WithFields(fields).Log(level, msg)
}

func logMutationRejected(ctx context.Context, mutation string, tenantID uuid.UUID, requestID string, nodeID uuid.UUID, err error, extra logrus.Fields) {
	fields := logrus.Fields{
		"tenant_id":  tenantID.String(),
		"request_id": requestID,
		"mutation":   mutation,
		"error_code": errorCode(err),
	}
	if nodeID != uuid.Nil {
		fields["node_id"] = nodeID.String()
	}
	for k, v := range extra {
		fields[k] = v
	}
	logWithFields(ctx, logrus.WarnLevel, "areas.mutation.rejected", fields)
}

func logPlanApplied(ctx context.Context, mutation string, tenantID uuid.UUID, requestID string, plan hierarchy.Plan, dryRun bool) {
	logWithFields(ctx, logrus.InfoLevel, "areas.plan.applied", logrus.Fields{
		"tenant_id":  tenantID.String(),
		"request_id": requestID,
		"mutation":   mutation,
		"ops":        plan.Len(),
		"dry_run":    dryRun,
	})
}
