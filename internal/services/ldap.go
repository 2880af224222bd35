package services

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/huangang/taskforge/internal/config"
)

var (
	ErrLDAPDisabled           = errors.New("LDAP is not enabled")
	ErrLDAPInvalidCredentials = errors.New("invalid credentials")
)

type LDAPService struct {
	config *config.LDAPConfig
}

func NewLDAPService(cfg *config.LDAPConfig) *LDAPService {
	return &LDAPService{config: cfg}
}

func (s *LDAPService) IsEnabled() bool {
	return s.config != nil && s.config.Enabled
}

type LDAPUser struct {
	DN       string
	Username string
	Email    string
	Nickname string
}

// Authenticate looks the user up with the service account and then binds as
// the user to verify the password.
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	if !s.IsEnabled() {
		return nil, ErrLDAPDisabled
	}
	if password == "" {
		// an empty password is an unauthenticated bind on most servers
		return nil, ErrLDAPInvalidCredentials
	}

	conn, err := s.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if s.config.BindDN != "" {
		if err := conn.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	searchRequest := ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		s.userFilter(username),
		[]string{"dn", "cn", "mail", "uid", "sAMAccountName"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) != 1 {
		return nil, ErrLDAPInvalidCredentials
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, ErrLDAPInvalidCredentials
	}

	user := &LDAPUser{
		DN:       entry.DN,
		Username: entry.GetAttributeValue("uid"),
		Email:    entry.GetAttributeValue("mail"),
		Nickname: entry.GetAttributeValue("cn"),
	}
	// Active Directory
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	if user.Username == "" {
		user.Username = username
	}
	return user, nil
}

func (s *LDAPService) dial() (*ldap.Conn, error) {
	if s.config.UseSSL {
		return ldap.DialURL(s.url(), ldap.DialWithTLSConfig(&tls.Config{
			ServerName: s.config.Host,
			MinVersion: tls.VersionTLS12,
		}))
	}
	return ldap.DialURL(s.url())
}

func (s *LDAPService) url() string {
	scheme := "ldap"
	if s.config.UseSSL {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, s.config.Host, s.config.Port)
}

func (s *LDAPService) userFilter(username string) string {
	filter := s.config.UserFilter
	if filter == "" {
		filter = "(uid=%s)"
	}
	return fmt.Sprintf(filter, ldap.EscapeFilter(username))
}
