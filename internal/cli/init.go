package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-photo-studio/internal/auth"
)

// InitAPIKey retrieves the Gemini API key and validates it with a minimal
// API call. Returns the context and key ready for use, or exits fatally on
// failure.
func InitAPIKey() (context.Context, string) {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to retrieve API key")
	}

	ctx := context.Background()
	client, err := auth.NewClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	log.Info().Msg("connection successful - Gemini client initialized")

	if err := auth.ValidateAPIKey(ctx, client); err != nil {
		HandleValidationError(err)
	}

	log.Info().Msg("API key validation complete - ready for editing")

	return ctx, apiKey
}
