package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "lineage/pkg/domain"
	"lineage/pkg/requestcontext"
)

// TokenVerifier validates a bearer token and reports which wallet it was
// issued to.
type TokenVerifier interface {
	VerifyToken(tokenString string) (id.WalletID, error)
}

// GetWallet retrieves the authenticated wallet ID from the context.
func GetWallet(ctx context.Context) id.WalletID {
	return requestcontext.Wallet(ctx)
}

// RequireWallet rejects requests without a valid bearer token and places
// the authenticated wallet ID in the context for handlers and services.
func RequireWallet(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			wallet, err := verifier.VerifyToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithWallet(r.Context(), wallet)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
