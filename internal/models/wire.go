package models

// EditRequest is the body of an item edit: the last persisted version and its
// replacement, both sealed.
type EditRequest struct {
	Original Record `json:"original"`
	Item     Record `json:"item"`
}

// HistoryRequest carries the full generator history.
type HistoryRequest struct {
	History []string `json:"history"`
}

// RegisterRequest is the body of an owner registration.
type RegisterRequest struct {
	// Login is the owner name, used as the certificate common name.
	Login string `json:"login"`
	// Vault names the vault created for the owner.
	Vault string `json:"vault"`
}

// Credentials is the PEM-encoded client certificate and key issued on
// registration.
type Credentials struct {
	Cert string `json:"cert"`
	Key  string `json:"key"`
}
