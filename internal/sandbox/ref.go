package sandbox

// creatingSentinel is the wire value persisted in thread metadata while a
// sandbox is being provisioned. Kept for compatibility with existing thread
// metadata; in-process code only ever sees a Ref.
const creatingSentinel = "__creating__"

// RefState is the persisted lifecycle state of a thread's sandbox.
type RefState int

const (
	// StateAbsent means no sandbox has been provisioned for the thread.
	StateAbsent RefState = iota
	// StateProvisioning means another caller is provisioning right now.
	StateProvisioning
	// StateReady means a sandbox id is persisted and resolvable.
	StateReady
)

// Ref is the decoded sandbox reference stored in thread metadata.
type Ref struct {
	State RefState
	ID    string
}

// ParseRef decodes the raw metadata value into a Ref.
func ParseRef(value any) Ref {
	s, ok := value.(string)
	if !ok || s == "" {
		return Ref{State: StateAbsent}
	}
	if s == creatingSentinel {
		return Ref{State: StateProvisioning}
	}
	return Ref{State: StateReady, ID: s}
}

// Encode returns the wire value for thread metadata: nil for absent, the
// sentinel while provisioning, the sandbox id when ready.
func (r Ref) Encode() any {
	switch r.State {
	case StateProvisioning:
		return creatingSentinel
	case StateReady:
		return r.ID
	default:
		return nil
	}
}
