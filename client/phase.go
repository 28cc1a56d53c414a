package client

// Phase is the orchestrator's externally visible lifecycle position. Every
// evaluation terminates in Authenticated or Unauthenticated; the phases in
// between exist so a caller can render meaningful intermediate UI.
type Phase int

const (
	// Booting is the initial phase before the first evaluation.
	Booting Phase = iota

	// ResolvingRedirect means a login redirect marker was found in the page
	// URL and is being exchanged with the bridge.
	ResolvingRedirect

	// RestoringFromCache means a cached session hint is being revalidated
	// against the authoritative session endpoint.
	RestoringFromCache

	// RestoringFromLinkedIdentity means a silent restoration by previously
	// linked external id is in flight.
	RestoringFromLinkedIdentity

	// AwaitingEmbeddedLogin means the in-app SDK owns the login flow and the
	// orchestrator is waiting for it to produce a token.
	AwaitingEmbeddedLogin

	// Authenticated is a terminal phase: a live session exists.
	Authenticated

	// Unauthenticated is a terminal phase: no session could be established.
	Unauthenticated
)

func (p Phase) String() string {
	switch p {
	case Booting:
		return "booting"
	case ResolvingRedirect:
		return "resolving_redirect"
	case RestoringFromCache:
		return "restoring_from_cache"
	case RestoringFromLinkedIdentity:
		return "restoring_from_linked_identity"
	case AwaitingEmbeddedLogin:
		return "awaiting_embedded_login"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase is a settled outcome.
func (p Phase) Terminal() bool {
	return p == Authenticated || p == Unauthenticated
}
