package core

import "context"

type contextKey string

const (
	ctxKeyAuthor  contextKey = "import_author"
	ctxKeyBatchID contextKey = "import_batch_id"
)

// ContextWithAuthor records the uploading identity for a direct import.
func ContextWithAuthor(ctx context.Context, author string) context.Context {
	return context.WithValue(ctx, ctxKeyAuthor, author)
}

// AuthorFromContext returns the author stored by ContextWithAuthor.
func AuthorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyAuthor).(string); ok {
		return v
	}
	return ""
}

// ContextWithBatchID tags ctx with the batch being processed.
func ContextWithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyBatchID, id)
}

// BatchIDFromContext returns the batch id stored by ContextWithBatchID.
func BatchIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyBatchID).(string); ok {
		return v
	}
	return ""
}
