package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValuesParsesStrings(t *testing.T) {
	s, err := FromValues(Defaults(), map[string]string{
		KeyFarmName:             "  North Pasture ",
		KeyHealthAlertThreshold: "65",
		KeyAlertEmail:           "vet@example.com",
		KeyRetentionDays:        "14",
		KeyMobileNotifications:  "false",
		"unknown":               "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, Settings{
		FarmName:             "North Pasture",
		HealthAlertThreshold: 65,
		AlertEmail:           "vet@example.com",
		RetentionDays:        14,
		MobileNotifications:  false,
	}, s)
}

func TestFromValuesRejectsBadInput(t *testing.T) {
	cases := map[string]map[string]string{
		"threshold not a number": {KeyHealthAlertThreshold: "high"},
		"threshold out of range": {KeyHealthAlertThreshold: "140"},
		"retention zero":         {KeyRetentionDays: "0"},
		"flag not a bool":        {KeyMobileNotifications: "maybe"},
		"bad email":              {KeyAlertEmail: "not-an-address"},
		"empty farm":             {KeyFarmName: "   "},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := FromValues(Defaults(), values)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Equal(t, Defaults(), s, "base returned on error")
		})
	}
}

func TestValuesRoundTrip(t *testing.T) {
	want := Settings{FarmName: "Ridge", HealthAlertThreshold: 80, RetentionDays: 7, MobileNotifications: true}
	got, err := FromValues(Defaults(), want.Values())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "80", want.Values()[KeyHealthAlertThreshold])
	assert.Equal(t, "true", want.Values()[KeyMobileNotifications])
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "settings.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), loaded, "empty database yields defaults")

	want := Settings{FarmName: "Valley", HealthAlertThreshold: 60, AlertEmail: "a@b.io", RetentionDays: 90}
	require.NoError(t, store.Save(ctx, want))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, loaded)

	assert.ErrorIs(t, reopened.Save(ctx, Settings{}), ErrInvalid)
}

func TestOpenSQLiteRejectsEmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	s, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)

	s.RetentionDays = 3
	require.NoError(t, m.Save(ctx, s))
	got, _ := m.Load(ctx)
	assert.Equal(t, 3, got.RetentionDays)

	s.RetentionDays = -1
	assert.ErrorIs(t, m.Save(ctx, s), ErrInvalid)
}
