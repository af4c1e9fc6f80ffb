package core

// ConnID identifies one live connection. A user may hold several.
type ConnID string
