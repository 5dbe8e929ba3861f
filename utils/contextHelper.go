package utils

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyReportId      = appctx.ContextKeyReportId
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyFlowToken     = appctx.ContextKeyFlowToken
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetReportIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyReportId)
}

func SetReportIdInContext(ctx context.Context, reportId string) context.Context {
	return appctx.Set(ctx, ContextKeyReportId, reportId)
}

func GetUserIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserId)
}

func SetUserIdInContext(ctx context.Context, userId string) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func GetFlowTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyFlowToken)
}

func SetFlowTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyFlowToken, token)
}

// LogFields collects the request-scoped identifiers present in ctx.
func LogFields(ctx context.Context, field string) logrus.Fields {
	fields := logrus.Fields{"field": field}
	if v, ok := GetCorrelationIdFromContext(ctx); ok && v != "" {
		fields["correlation_id"] = v
	}
	if v, ok := GetReportIdFromContext(ctx); ok && v != "" {
		fields["report_id"] = v
	}
	if v, ok := GetUserIdFromContext(ctx); ok && v != "" {
		fields["user_id"] = v
	}
	if v, ok := GetFlowTokenFromContext(ctx); ok && v != "" {
		fields["flow_token"] = v
	}
	return fields
}
