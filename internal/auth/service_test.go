package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&APIToken{}))
	return db
}

func TestResolveToken(t *testing.T) {
	db := newAuthTestDB(t)
	userID := uuid.New()
	require.NoError(t, db.Create(&APIToken{Token: "tok-active", UserID: userID, IsActive: true}).Error)
	require.NoError(t, db.Create(&APIToken{Token: "tok-revoked", UserID: uuid.New(), IsActive: false}).Error)

	svc := NewAuthService(db)

	actor, err := svc.ResolveToken(context.Background(), "tok-active")
	require.NoError(t, err)
	assert.Equal(t, userID, actor.UserID)

	// Revoked and unknown tokens are indistinguishable to the caller.
	_, err = svc.ResolveToken(context.Background(), "tok-revoked")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = svc.ResolveToken(context.Background(), "tok-missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = svc.ResolveToken(context.Background(), "")
	assert.Error(t, err)
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "bearer scheme", header: "Bearer abc123", want: "abc123"},
		{name: "bare token", header: "abc123", want: "abc123"},
		{name: "bearer with padding", header: "Bearer  abc123 ", want: "abc123"},
		{name: "empty header", header: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TokenFromHeader(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
