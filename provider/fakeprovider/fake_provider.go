package fakeprovider

import (
	"context"
	"net/url"
	"sync"

	"github.com/pascalpierre555/quantix/provider"
)

var _ provider.Provider = (*FakeProvider)(nil)

// FakeProvider records calls and answers from the configured functions.
// A nil function returns an empty token and no error.
type FakeProvider struct {
	mu sync.Mutex

	ExchangeFunc  func(ctx context.Context, code string) (*provider.Token, error)
	RefreshFunc   func(ctx context.Context, refreshToken string) (*provider.Token, error)
	UserEmailFunc func(ctx context.Context, accessToken string) (string, error)

	exchangeCalls  int
	refreshCalls   int
	userEmailCalls int
}

func New() *FakeProvider {
	return &FakeProvider{}
}

func (f *FakeProvider) AuthCodeURL(state string) string {
	return "https://provider.test/auth?state=" + url.QueryEscape(state)
}

func (f *FakeProvider) Exchange(ctx context.Context, code string) (*provider.Token, error) {
	f.mu.Lock()
	f.exchangeCalls++
	fn := f.ExchangeFunc
	f.mu.Unlock()

	if fn == nil {
		return &provider.Token{}, nil
	}
	return fn(ctx, code)
}

func (f *FakeProvider) Refresh(ctx context.Context, refreshToken string) (*provider.Token, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.RefreshFunc
	f.mu.Unlock()

	if fn == nil {
		return &provider.Token{RefreshToken: refreshToken}, nil
	}
	return fn(ctx, refreshToken)
}

func (f *FakeProvider) UserEmail(ctx context.Context, accessToken string) (string, error) {
	f.mu.Lock()
	f.userEmailCalls++
	fn := f.UserEmailFunc
	f.mu.Unlock()

	if fn == nil {
		return "", nil
	}
	return fn(ctx, accessToken)
}

func (f *FakeProvider) ExchangeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls
}

func (f *FakeProvider) RefreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

// NetworkCalls is the total number of calls that would have reached the provider.
func (f *FakeProvider) NetworkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls + f.refreshCalls + f.userEmailCalls
}
