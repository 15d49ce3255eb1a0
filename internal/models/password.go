package models

var passwordFields = []string{"username", "password", "url"}

// PasswordItem is a credential record. Username, Password and URL are
// sensitive and change state together.
type PasswordItem struct {
	Meta
	// Username is the account login.
	Username string `json:"username"`
	// Password is the secret value.
	Password string `json:"password"`
	// URL optionally records where the credential is used.
	URL string `json:"url,omitempty"`
}

// NewPassword returns a plaintext password item ready to be saved.
func NewPassword(name, username, password, url string) *PasswordItem {
	return &PasswordItem{
		Meta:     Meta{Name: name},
		Username: username,
		Password: password,
		URL:      url,
	}
}

// Kind implements Item.
func (p *PasswordItem) Kind() Kind { return KindPassword }

// Encrypt implements Item.
func (p *PasswordItem) Encrypt(fn Transform) error {
	if p.Encrypted {
		return ErrAlreadyEncrypted
	}
	sealed, err := sealFields(fn, passwordFields, p.Username, p.Password, p.URL)
	if err != nil {
		return err
	}
	p.Username, p.Password, p.URL = sealed[0], sealed[1], sealed[2]
	p.Encrypted = true
	return nil
}

// Decrypt implements Item.
func (p *PasswordItem) Decrypt(fn Transform) error {
	if !p.Encrypted {
		return ErrNotEncrypted
	}
	opened, err := openFields(fn, passwordFields, p.Username, p.Password, p.URL)
	if err != nil {
		return err
	}
	p.Username, p.Password, p.URL = opened[0], opened[1], opened[2]
	p.Encrypted = false
	return nil
}

// Clear implements Item.
func (p *PasswordItem) Clear() {
	*p = PasswordItem{}
}

// Clone implements Item.
func (p *PasswordItem) Clone() Item {
	c := *p
	return &c
}
