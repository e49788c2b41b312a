package shared

import (
	"context"

	"golang.org/x/text/language"
)

// Caller identifies the authenticated principal for audit fields.
type Caller struct {
	ID      int64
	Subject string
	Service bool
}

type callerContextKey struct{}

type languageContextKey struct{}

// ContextWithCaller stores the caller in context.
func ContextWithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller from context, nil when unauthenticated.
func CallerFromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerContextKey{}).(*Caller)
	return caller
}

// ContextWithLanguage stores the negotiated display language in context.
func ContextWithLanguage(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, languageContextKey{}, tag)
}

// LanguageFromContext extracts the negotiated display language.
func LanguageFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(languageContextKey{}).(language.Tag); ok {
		return tag
	}
	return language.English
}
