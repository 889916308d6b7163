package award

import (
	"time"

	"github.com/pickemlabs/pickem-engine/internal/domain/pick"
)

type Type string

const (
	TypeChampion   Type = "champion"
	TypeRunnerUp   Type = "runner_up"
	TypeThirdPlace Type = "third_place"
)

// Award records a final season placement. One row per
// (season, picker, scope, type); creation is a no-op on duplicates.
type Award struct {
	ID        string
	SeasonID  string
	PickerID  string
	Scope     pick.Scope
	Type      Type
	CreatedAt time.Time
}
