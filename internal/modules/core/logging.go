package core

import (
	"context"
	"fmt"

	"github.com/eskrenkovic/mediator-go"

	"go.uber.org/zap"
)

const LoggerContextKey contextKey = "logger"

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// Logger returns the request scoped logger, falling back to the global one.
func Logger(ctx context.Context) *zap.Logger {
	logger, ok := ctx.Value(LoggerContextKey).(*zap.Logger)
	if !ok || logger == nil {
		logger = zap.L()
	}

	if correlationID, ok := ctx.Value(CorrelationIDContextKey).(string); ok && correlationID != "" {
		logger = logger.With(zap.String("correlation_id", correlationID))
	}

	return logger
}

func LogError(ctx context.Context, msg string, fields ...zap.Field) {
	Logger(ctx).Error(msg, fields...)
}

func LogWarn(ctx context.Context, msg string, fields ...zap.Field) {
	Logger(ctx).Warn(msg, fields...)
}

var _ mediator.PipelineBehavior = (*RequestLoggingBehavior)(nil)

type RequestLoggingBehavior struct {
	Logger *zap.Logger
}

func (b *RequestLoggingBehavior) Handle(
	ctx context.Context,
	request interface{},
	next mediator.RequestHandlerFunc,
) (interface{}, error) {
	var logFields []zap.Field

	correlationID := ctx.Value(CorrelationIDContextKey)
	if correlationID != nil && correlationID != "" {
		logFields = append(logFields, zap.Any("correlation_id", correlationID))
	}

	if request != nil {
		logFields = append(
			logFields,
			zap.String("request_type", fmt.Sprintf("%T", request)),
			zap.Any("request_body", request),
		)
	}

	if session := Session(ctx); session.MemberID != "" {
		logFields = append(logFields, zap.String("member_id", session.MemberID))
	}

	b.Logger.Info("processing request", logFields...)

	return next(ctx, request)
}

var _ mediator.PipelineBehavior = (*HandlerErrorLoggingBehavior)(nil)

type HandlerErrorLoggingBehavior struct {
	Logger *zap.Logger
}

func (b *HandlerErrorLoggingBehavior) Handle(
	ctx context.Context,
	request interface{},
	next mediator.RequestHandlerFunc,
) (interface{}, error) {
	response, err := next(ctx, request)
	if err != nil {
		b.Logger.Error(
			"handler returned error",
			zap.String("request_type", fmt.Sprintf("%T", request)),
			zap.Any("correlation_id", ctx.Value(CorrelationIDContextKey)),
			zap.Error(err),
		)
	}

	return response, err
}
