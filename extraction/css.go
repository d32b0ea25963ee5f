package extraction

import (
	"fmt"
	"regexp"
	"strings"
)

// The CSS translator handles a small fixed rule table, not general CSS.
// Anything outside the table deterministically produces no translation so a
// rule falls through as a non-match instead of a best-effort guess.
var (
	cssBareTag  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]*$`)
	cssClass    = regexp.MustCompile(`^\.([A-Za-z_][\w-]*)$`)
	cssID       = regexp.MustCompile(`^#([\w-]+)$`)
	cssTagClass = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9-]*)\.([A-Za-z_][\w-]*)$`)
	cssTagID    = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9-]*)#([\w-]+)$`)
	cssTagAttr  = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9-]*)\[([\w-]+)=(?:"([^"]*)"|'([^']*)')\]$`)
	cssAttr     = regexp.MustCompile(`^\[([\w-]+)\]$`)
)

// TranslateCSS converts a constrained CSS selector subset into an XPath
// expression for the query engine. The supported forms are: #id, .class,
// tag.class, tag#id, tag[attr="v"], [attr] and a bare tag. ok is false for
// anything else.
func TranslateCSS(selector string) (xpath string, ok bool) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return "", false
	}

	if m := cssClass.FindStringSubmatch(selector); m != nil {
		return fmt.Sprintf("//*[%s]", classPredicate(m[1])), true
	}
	if m := cssID.FindStringSubmatch(selector); m != nil {
		return fmt.Sprintf("//*[@id='%s']", m[1]), true
	}
	if m := cssTagClass.FindStringSubmatch(selector); m != nil {
		return fmt.Sprintf("//%s[%s]", m[1], classPredicate(m[2])), true
	}
	if m := cssTagID.FindStringSubmatch(selector); m != nil {
		return fmt.Sprintf("//%s[@id='%s']", m[1], m[2]), true
	}
	if m := cssTagAttr.FindStringSubmatch(selector); m != nil {
		value := m[3]
		if value == "" {
			value = m[4]
		}
		return fmt.Sprintf("//%s[@%s='%s']", m[1], m[2], value), true
	}
	if m := cssAttr.FindStringSubmatch(selector); m != nil {
		return fmt.Sprintf("//*[@%s]", m[1]), true
	}
	if cssBareTag.MatchString(selector) {
		return "//" + selector, true
	}

	return "", false
}

// classPredicate matches a class attribute containing the token, the same
// token semantics the browser applies to class selectors.
func classPredicate(class string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", class)
}
