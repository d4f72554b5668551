package observability

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConnLogger derives a per-connection logger from the global one. The conn
// field is a fresh uuid so interleaved connections stay separable in output.
func ConnLogger(component string) (zerolog.Logger, string) {
	id := uuid.NewString()
	return log.Logger.With().Str("component", component).Str("conn", id).Logger(), id
}
