package client_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/client"
	inmemdb "github.com/trezcool/vigil/storage/database/inmem"
)

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	svc := client.NewService(inmemdb.NewClientRepository(inmemdb.Open()))

	created, err := svc.Create(ctx, client.NewClient{ClientID: "acme", Name: "Acme Corp", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.PasswordHash)

	tests := []struct {
		name     string
		clientID string
		pwd      string
		wantErr  error
	}{
		{name: "valid", clientID: "acme", pwd: "s3cret-pass"},
		{name: "padded id", clientID: " acme ", pwd: "s3cret-pass"},
		{name: "wrong password", clientID: "acme", pwd: "S3cret-pass", wantErr: client.ErrInvalidCredentials},
		{name: "unknown client", clientID: "initech", pwd: "s3cret-pass", wantErr: client.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clt, err := svc.Authenticate(ctx, tt.clientID, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, created.ID, clt.ID)
		})
	}

	t.Run("reset password", func(t *testing.T) {
		require.NoError(t, svc.ResetPassword(ctx, "acme", "n3w-s3cret"))
		_, err := svc.Authenticate(ctx, "acme", "s3cret-pass")
		assert.Equal(t, client.ErrInvalidCredentials, err)
		_, err = svc.Authenticate(ctx, "acme", "n3w-s3cret")
		assert.NoError(t, err)
		assert.True(t, core.IsNotFound(svc.ResetPassword(ctx, "lol", "n3w-s3cret")))
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := svc.Create(ctx, client.NewClient{ClientID: "acme", Name: "Other", Password: "s3cret-pass"})
		var valErr *core.ValidationError
		require.True(t, errors.As(err, &valErr))
		assert.Equal(t, map[string]string{"client_id": client.ErrClientIDExists.Error()}, valErr.FieldMap())
	})
}
