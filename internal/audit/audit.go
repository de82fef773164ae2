// Package audit checks the store invariants that the repositories are meant
// to keep. It reports violations and never repairs them.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"relayconf/internal/storage"
	pkgerrors "relayconf/pkg/errors"
)

// Report is the result of one audit run.
type Report struct {
	CheckedAt      time.Time
	Groups         int
	Configurations int
	Violations     []*pkgerrors.ConsistencyViolation
}

// OK reports whether the run found nothing.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

// Check reads the whole store once and collects every violation.
func Check(ctx context.Context, store storage.Storage) (*Report, error) {
	report := &Report{CheckedAt: time.Now()}

	groups, err := store.GetAllGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read groups: %w", err)
	}
	report.Groups = len(groups)

	active := 0
	for _, g := range groups {
		if g.Active {
			active++
		}
	}
	if active > 1 {
		report.add("active group", "%d groups are flagged active", active)
	}

	for _, g := range groups {
		configs, err := store.GetConfigurationsByGroup(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read configurations of group %d: %w", g.ID, err)
		}
		report.Configurations += len(configs)

		priorities := make([]int, len(configs))
		for i, c := range configs {
			priorities[i] = c.Priority
		}
		sort.Ints(priorities)
		for i, p := range priorities {
			if p != i+1 {
				report.add("priorities", "group %d %q has priorities %v, want 1..%d",
					g.ID, g.Name, priorities, len(priorities))
				break
			}
		}
	}
	return report, nil
}

func (r *Report) add(op, format string, args ...interface{}) {
	r.Violations = append(r.Violations, &pkgerrors.ConsistencyViolation{
		Op:     op,
		Detail: fmt.Sprintf(format, args...),
	})
}
