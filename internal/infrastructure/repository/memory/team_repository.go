package memory

import (
	"context"
	"sync"

	"github.com/pickemlabs/pickem-engine/internal/domain/team"
)

type TeamRepository struct {
	mu            sync.RWMutex
	teamsBySeason map[string][]team.Team
}

func NewTeamRepository(teams ...team.Team) *TeamRepository {
	bySeason := make(map[string][]team.Team)
	for _, item := range teams {
		bySeason[item.SeasonID] = append(bySeason[item.SeasonID], item)
	}
	return &TeamRepository{teamsBySeason: bySeason}
}

func (r *TeamRepository) ListBySeason(_ context.Context, seasonID string) ([]team.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	teams := r.teamsBySeason[seasonID]
	out := make([]team.Team, 0, len(teams))
	out = append(out, teams...)
	return out, nil
}

func (r *TeamRepository) GetByID(_ context.Context, seasonID, teamID string) (team.Team, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, item := range r.teamsBySeason[seasonID] {
		if item.ID == teamID {
			return item, true, nil
		}
	}
	return team.Team{}, false, nil
}
