// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/polimec/polimec-core/db"
	"github.com/polimec/polimec-core/state/factory"
)

func TestScheduleUpdate(t *testing.T) {
	r := require.New(t)
	cfg := DefaultConfig
	ws := factory.NewWorkingSet(1, db.NewMemKVStore())

	t.Run("due pops in height order", func(t *testing.T) {
		r.NoError(scheduleUpdate(ws, &cfg, 300, 3))
		r.NoError(scheduleUpdate(ws, &cfg, 100, 1))
		r.NoError(scheduleUpdate(ws, &cfg, 200, 2))

		due, err := dueUpdates(ws, 50)
		r.NoError(err)
		r.Empty(due)

		due, err = dueUpdates(ws, 200)
		r.NoError(err)
		r.Len(due, 2)
		r.Equal(uint64(1), due[0].ProjectID)
		r.Equal(uint64(2), due[1].ProjectID)

		// popped entries are gone, the later one is still queued
		due, err = dueUpdates(ws, 1000)
		r.NoError(err)
		r.Len(due, 1)
		r.Equal(uint64(3), due[0].ProjectID)
	})

	t.Run("full block spills to the next height", func(t *testing.T) {
		for i := uint64(0); i < cfg.MaxUpdatesPerBlock; i++ {
			r.NoError(scheduleUpdate(ws, &cfg, 500, 100+i))
		}
		r.NoError(scheduleUpdate(ws, &cfg, 500, 999))

		due, err := dueUpdates(ws, 500)
		r.NoError(err)
		r.Empty(filterProject(due, 999))
		due, err = dueUpdates(ws, 501)
		r.NoError(err)
		r.Len(filterProject(due, 999), 1)
	})

	t.Run("a saturated window errors out", func(t *testing.T) {
		for h := uint64(700); h <= 700+cfg.MaxScheduleRetries; h++ {
			for i := uint64(0); i < cfg.MaxUpdatesPerBlock; i++ {
				r.NoError(scheduleUpdate(ws, &cfg, h, 1000+h*100+i))
			}
		}
		err := scheduleUpdate(ws, &cfg, 700, 1)
		r.Equal(ErrScheduleFull, errors.Cause(err))
	})
}

func filterProject(updates []*ScheduledUpdate, projectID uint64) []*ScheduledUpdate {
	var out []*ScheduledUpdate
	for _, u := range updates {
		if u.ProjectID == projectID {
			out = append(out, u)
		}
	}
	return out
}
