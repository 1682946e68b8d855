package firebase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"luna-backend/internal/config"
)

// ErrInvalidCredentials is returned when the base64 service account cannot be decoded.
var ErrInvalidCredentials = errors.New("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is not a valid base64 string")

// clientOptions picks the credential source: a key file, then inline base64 JSON. With
// neither set, application default credentials are used.
func clientOptions(cfg *config.Config) ([]option.ClientOption, error) {
	switch {
	case cfg.GoogleApplicationCredentials != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.GoogleApplicationCredentials)}, nil
	case cfg.FirebaseServiceAccountJSONBase64 != "":
		jsonKey, err := base64.StdEncoding.DecodeString(cfg.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		return []option.ClientOption{option.WithCredentialsJSON(jsonKey)}, nil
	default:
		return nil, nil
	}
}

// NewApp initializes the Firebase app for cfg.FirebaseProjectID.
func NewApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	if cfg.FirebaseProjectID == "" {
		return nil, errors.New("FIREBASE_PROJECT_ID must be set")
	}
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	return app, nil
}
