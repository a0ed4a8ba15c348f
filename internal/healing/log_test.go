package healing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AddAllClear(t *testing.T) {
	log := NewLog()
	assert.Equal(t, 0, log.Len())

	log.Add(Record{Original: "#user", Healed: "#healed", PageName: "login page"})
	log.Add(Record{Original: "#pass", Healed: "#pw", PageName: "login page"})

	all := log.All()
	require.Len(t, all, 2)
	assert.Equal(t, "#user", all[0].Original)
	assert.Equal(t, "#pw", all[1].Healed)
	assert.False(t, all[0].HealedAt.IsZero(), "Add stamps HealedAt")

	log.Clear()
	assert.Empty(t, log.All())
}

func TestLog_AllReturnsCopy(t *testing.T) {
	log := NewLog()
	log.Add(Record{Original: "a", Healed: "b"})

	all := log.All()
	all[0].Healed = "mutated"

	assert.Equal(t, "b", log.All()[0].Healed)
}

func TestLog_KeepsExplicitTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	log := NewLog()
	log.Add(Record{Original: "a", Healed: "b", HealedAt: ts})
	assert.Equal(t, ts, log.All()[0].HealedAt)
}

func TestLog_Drain(t *testing.T) {
	log := NewLog()
	log.Add(Record{Original: "a", Healed: "b"})

	drained := log.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, 0, log.Len())
	assert.Empty(t, log.Drain())
}

func TestLog_ConcurrentAdd(t *testing.T) {
	log := NewLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Add(Record{Original: "x", Healed: "y"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, log.Len())
}
