package utils

import (
	"context"

	"github.com/AlecsRosa/kondomanager-sub000/appctx"
)

// Alias the shared context key type so call sites stay terse.
type contextKey = appctx.ContextKey

var (
	ContextKeyCondominiumId   = appctx.ContextKeyCondominiumId
	ContextKeyActorId         = appctx.ContextKeyActorId
	ContextKeyActorName       = appctx.ContextKeyActorName
	ContextKeyCorrelationId   = appctx.ContextKeyCorrelationId
	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetCondominiumIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCondominiumId)
}

func GetActorIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyActorId)
}

func GetActorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCondominiumIdInContext(ctx context.Context, condominiumId string) context.Context {
	return appctx.Set(ctx, ContextKeyCondominiumId, condominiumId)
}

func SetActorIdInContext(ctx context.Context, actorId int) context.Context {
	return appctx.Set(ctx, ContextKeyActorId, actorId)
}

func SetActorNameInContext(ctx context.Context, actorName string) context.Context {
	return appctx.Set(ctx, ContextKeyActorName, actorName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}
