package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	allowed := NewSet(KindPush)

	assert.True(t, Matches(&Push{}, allowed))
	assert.False(t, Matches(&Ping{}, allowed))
	assert.False(t, Matches(&Opaque{Name: KindPullRequest}, allowed))
	assert.False(t, Matches(nil, allowed))
	assert.False(t, Matches(&Push{}, NewSet()))
}

func TestMatches_Opaque(t *testing.T) {
	allowed := NewSet(KindRelease, KindPush)

	assert.True(t, Matches(&Opaque{Name: KindRelease}, allowed))
	assert.Equal(t, []Kind{KindPush, KindRelease}, allowed.Kinds())
}
