package auth

// CredentialStore defines the interface for session storage operations
// This allows us to mock the keyring in tests
type CredentialStore interface {
	Save(apiHost, data string) error
	Load(apiHost string) (string, error)
	Delete(apiHost string) error
}

// defaultCredentialStore implements CredentialStore using the OS keyring
type defaultCredentialStore struct{}

var Default CredentialStore = &defaultCredentialStore{}

func (d *defaultCredentialStore) Save(apiHost, data string) error {
	return SaveSession(apiHost, data)
}

func (d *defaultCredentialStore) Load(apiHost string) (string, error) {
	return LoadSession(apiHost)
}

func (d *defaultCredentialStore) Delete(apiHost string) error {
	return DeleteSession(apiHost)
}

// MemoryStore keeps sessions in memory. Used with --no-keyring and in tests.
type MemoryStore struct {
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Save(apiHost, data string) error {
	m.data[apiHost] = data
	return nil
}

func (m *MemoryStore) Load(apiHost string) (string, error) {
	data, ok := m.data[apiHost]
	if !ok {
		return "", ErrNoSession
	}
	return data, nil
}

func (m *MemoryStore) Delete(apiHost string) error {
	delete(m.data, apiHost)
	return nil
}
