package http

import (
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tracedesk/pkg/domain/model"
	"github.com/secmon-lab/tracedesk/pkg/utils/logging"
)

// authMiddleware resolves the caller and stores it in the request context.
// Requests without credentials continue as anonymous, which can read but not
// write. A credential that fails verification is rejected with 401.
func authMiddleware(authUC AuthUseCase) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if authUC == nil {
				next.ServeHTTP(w, r.WithContext(model.ContextWithPrincipal(ctx, model.NewAnonymous())))
				return
			}

			token, ok := bearerToken(r)
			if !ok && !authUC.IsNoAuthn() {
				next.ServeHTTP(w, r.WithContext(model.ContextWithPrincipal(ctx, model.NewAnonymous())))
				return
			}

			principal, err := authUC.Authenticate(ctx, token)
			if err != nil {
				writeError(ctx, w, goerr.Wrap(err, "invalid authentication token"))
				return
			}

			ctx = model.ContextWithPrincipal(ctx, principal)
			ctx = logging.With(ctx, logging.From(ctx).With("subject", principal.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
