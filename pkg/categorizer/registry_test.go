package categorizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddNormalizes(t *testing.T) {
	reg := NewRegistry()
	cat, err := reg.Add("  Trabajo ", []string{" Reunión", "oficina", "REUNION", "", "  "})
	require.NoError(t, err)
	assert.Equal(t, "trabajo", cat.Name)
	assert.Equal(t, []string{"reunion", "oficina"}, cat.Keywords)
}

func TestRegistry_AddRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Add("Trabajo", []string{"reunion"})
	require.NoError(t, err)

	_, err = reg.Add("trabajo", []string{"oficina"})
	assert.ErrorIs(t, err, ErrDuplicateCategory)

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, "trabajo", list[0].Name)
	assert.Equal(t, []string{"reunion"}, list[0].Keywords)
}

func TestRegistry_AddRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Add("   ", []string{"reunion"})
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = reg.Add("trabajo", []string{" ", ""})
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = reg.Add("trabajo", nil)
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = reg.Add("trabajo", []string{"reunion", "sala 1, planta 2"})
	assert.ErrorIs(t, err, ErrInvalidCategory)
	assert.ErrorContains(t, err, "sala 1, planta 2")
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Remove(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		_, err := reg.Add(name, []string{name + "kw"})
		require.NoError(t, err)
	}

	require.NoError(t, reg.Remove("B"))
	assert.ErrorIs(t, reg.Remove("b"), ErrCategoryNotFound)
	assert.ErrorIs(t, reg.Remove("zzz"), ErrCategoryNotFound)

	names := []string{}
	for _, c := range reg.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a", "c"}, names)

	got, ok := reg.Get("C")
	require.True(t, ok)
	assert.Equal(t, []string{"ckw"}, got.Keywords)
}

func TestRegistry_SnapshotIsIsolated(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Add("ocio", []string{"cine"})
	require.NoError(t, err)

	snap := reg.Snapshot()
	snap[0].Keywords[0] = "mutated"
	require.NoError(t, reg.Remove("ocio"))

	require.Len(t, snap, 1)
	got := reg.Snapshot()
	assert.Empty(t, got)

	_, err = reg.Add("ocio", []string{"cine"})
	require.NoError(t, err)
	again, _ := reg.Get("ocio")
	assert.Equal(t, []string{"cine"}, again.Keywords)
}

func TestRegistry_Replace(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Add("viejo", []string{"x"})
	require.NoError(t, err)

	err = reg.Replace([]Category{{Name: "A", Keywords: []string{"uno"}}, {Name: "a", Keywords: []string{"dos"}}})
	assert.ErrorIs(t, err, ErrDuplicateCategory)
	_, ok := reg.Get("viejo")
	assert.True(t, ok, "failed replace must leave the registry untouched")

	require.NoError(t, reg.Replace([]Category{{Name: "Trabajo", Keywords: []string{"Reunión"}}}))
	assert.Equal(t, 1, reg.Len())
	got, ok := reg.Get("trabajo")
	require.True(t, ok)
	assert.Equal(t, []string{"reunion"}, got.Keywords)
}
