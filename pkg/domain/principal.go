package domain

// PrincipalKind distinguishes field scanners from dashboard users.
type PrincipalKind string

const (
	PrincipalScanner PrincipalKind = "scanner"
	PrincipalUser    PrincipalKind = "user"
)

// Principal is the authenticated caller as established by the auth layer.
// Scanner principals carry the credential name they presented; user principals
// carry the account ID from their token.
type Principal struct {
	Kind      PrincipalKind
	UserID    UserID
	ScannerID string
}

func (p Principal) IsScanner() bool { return p.Kind == PrincipalScanner }
func (p Principal) IsUser() bool    { return p.Kind == PrincipalUser }

// Action is what a principal wants to do with a device's data.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)
