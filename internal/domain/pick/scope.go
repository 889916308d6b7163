package pick

import "fmt"

// Scope selects which pick stream a picker operates in: one shared stream
// across every pool ("global") or an independent stream per pool. It is
// resolved once at the call boundary and passed explicitly into every rule
// and standings lookup.
type Scope struct {
	PoolID string
}

// GlobalScope is the shared pick stream.
var GlobalScope = Scope{}

func PerPool(poolID string) Scope {
	return Scope{PoolID: poolID}
}

func (s Scope) IsGlobal() bool {
	return s.PoolID == ""
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return fmt.Sprintf("pool:%s", s.PoolID)
}
