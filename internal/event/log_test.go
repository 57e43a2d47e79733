package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_RecordsInOrder(t *testing.T) {
	em := NewEmitter(nil)
	var log Log
	em.SubscribeAll(log.Record)

	em.Emit(Invalid{Rel: testRel})
	em.Emit(Available{Rel: testRel, Config: "c"})
	em.Emit(Broken{Rel: testRel})

	require.Equal(t, 3, log.Len())
	events := log.Events()
	assert.Equal(t, KindInvalid, events[0].Kind())
	assert.Equal(t, KindAvailable, events[1].Kind())
	assert.Equal(t, KindBroken, events[2].Kind())
}

func TestLog_Pop(t *testing.T) {
	var log Log
	_, ok := log.Pop()
	assert.False(t, ok)

	log.Record(Invalid{Rel: testRel})
	log.Record(Broken{Rel: testRel})

	ev, ok := log.Pop()
	require.True(t, ok)
	assert.Equal(t, KindInvalid, ev.Kind())
	assert.Equal(t, 1, log.Len())

	log.Clear()
	assert.Zero(t, log.Len())
	assert.Empty(t, log.Events())
}

func TestLog_EventsIsCopy(t *testing.T) {
	var log Log
	log.Record(Invalid{Rel: testRel})

	events := log.Events()
	events[0] = Broken{Rel: testRel}

	assert.Equal(t, KindInvalid, log.Events()[0].Kind())
}
