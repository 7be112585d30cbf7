package directory

import (
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/viralforge/dbfleet/internal/domain"
)

// parseEntry maps one search result entry to a DirectoryIdentity. Entries
// without a username attribute are skipped.
func (d *LDAPDirectory) parseEntry(entry *ldap.Entry) *domain.DirectoryIdentity {
	username := entry.GetAttributeValue(d.cfg.UsernameAttr)
	if username == "" {
		return nil
	}

	display := entry.GetAttributeValue(d.cfg.DisplayNameAttr)
	if display == "" {
		display = username
	}

	var groups []string
	for _, groupDN := range entry.GetAttributeValues(d.cfg.GroupAttr) {
		if name := extractCN(groupDN); name != "" {
			groups = append(groups, name)
		}
	}

	return &domain.DirectoryIdentity{
		DN:          entry.DN,
		Username:    username,
		DisplayName: display,
		Email:       entry.GetAttributeValue(d.cfg.EmailAttr),
		Groups:      groups,
	}
}

// extractCN pulls the common name out of a distinguished name, e.g.
// "CN=DB Admins,OU=Groups,DC=corp" yields "DB Admins". Returns "" when the
// DN does not lead with a CN component.
func extractCN(dn string) string {
	if len(dn) < 3 || !strings.EqualFold(dn[:3], "CN=") {
		return ""
	}
	rest := dn[3:]
	if idx := strings.IndexByte(rest, ','); idx >= 0 {
		return rest[:idx]
	}
	return rest
}
