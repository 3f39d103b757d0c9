package semantic

import (
	"strings"

	"github.com/hazyhaar/elderly/livedom"
)

// Stats are the page-level counts the strategy selector consults.
type Stats struct {
	Forms             int `json:"forms"`
	ContentContainers int `json:"content_containers"`
}

// scan is the shared read-only state of one identification pass. Later
// identifiers may consult what earlier ones found (search fields inside a
// form belong to the form) but never see tree changes.
type scan struct {
	root  *livedom.Node
	forms []*livedom.Node
}

// Identify runs every identifier over the tree rooted at doc's body, in the
// order form, search, navigation, sidebar, content, action, ad, and returns
// the blocks in that order (document order within a kind).
func Identify(doc *livedom.Document) ([]Block, Stats) {
	root := doc.Body()
	if root == nil {
		root = doc.Root()
	}
	s := &scan{root: root}

	var blocks []Block
	forms := s.identifyForms()
	blocks = append(blocks, forms...)
	blocks = append(blocks, s.identifySearch()...)
	blocks = append(blocks, s.identifyNavigation()...)
	blocks = append(blocks, s.identifySidebars()...)
	content := s.identifyContent()
	blocks = append(blocks, content...)
	blocks = append(blocks, s.identifyActions()...)
	blocks = append(blocks, s.identifyAds()...)

	return blocks, Stats{Forms: len(forms), ContentContainers: len(content)}
}

// ---- form ----

func isExplicitForm(n *livedom.Node) bool { return n.Tag() == "form" }

// hasFormToken reports whether an id or class token looks form-like:
// "form", "*-form" or "form-*".
func hasFormToken(n *livedom.Node) bool {
	for _, tok := range identityTokens(n) {
		if tok == "form" || strings.Contains(tok, "form-") || strings.Contains(tok, "-form") {
			return true
		}
	}
	return false
}

func (s *scan) isImplicitCandidate(n *livedom.Node) bool {
	if isExplicitForm(n) || IsInputLike(n) || IsButtonLike(n) || !hasFormToken(n) {
		return false
	}
	if n.Closest(isExplicitForm) != nil {
		return false
	}
	return n.Query(IsInputLike) != nil
}

func (s *scan) identifyForms() []Block {
	cands := s.root.QueryAll(func(n *livedom.Node) bool {
		return isExplicitForm(n) || s.isImplicitCandidate(n)
	})

	var implicit []*livedom.Node
	for _, n := range cands {
		if !isExplicitForm(n) {
			implicit = append(implicit, n)
		}
	}
	keepImplicit := make(map[*livedom.Node]bool)
	for _, n := range outermost(implicit) {
		keepImplicit[n] = true
	}

	var blocks []Block
	for _, n := range cands {
		explicit := isExplicitForm(n)
		if !explicit && !keepImplicit[n] {
			continue
		}
		if !n.IsVisible() {
			continue
		}
		s.forms = append(s.forms, n)
		meta := formMetadata(n)
		meta.Implicit = !explicit
		blocks = append(blocks, newBlock(n, Form, meta))
	}
	return blocks
}

var userTokens = []string{"user", "email", "e-mail", "login", "account", "phone", "identifier"}

func formMetadata(form *livedom.Node) Metadata {
	var m Metadata
	password, user := false, false
	for _, in := range form.QueryAll(IsInputLike) {
		m.InputCount++
		t := in.InputType()
		switch {
		case t == "password":
			password = true
		case t == "email":
			user = true
		case t == "text" || t == "tel":
			hints := strings.ToLower(strings.Join([]string{
				in.Attr("name"), in.Attr("id"), in.Attr("autocomplete"), in.Attr("placeholder"),
			}, " "))
			for _, tok := range userTokens {
				if strings.Contains(hints, tok) {
					user = true
					break
				}
			}
		}
		if isSearchField(in) {
			m.HasSearch = true
		}
	}
	m.HasLogin = password && user
	return m
}

// ---- search ----

// isSearchField matches text-entry fields whose type, name, placeholder,
// id, aria-label or label mentions "search".
func isSearchField(n *livedom.Node) bool {
	switch n.Tag() {
	case "input":
		switch n.InputType() {
		case "search":
			return true
		case "text", "":
		default:
			return false
		}
	case "textarea":
	default:
		return false
	}
	hints := strings.ToLower(strings.Join([]string{
		n.Attr("name"), n.Attr("placeholder"), n.Attr("id"),
		n.Attr("aria-label"), n.Attr("title"), fieldLabelText(n),
	}, " "))
	return strings.Contains(hints, "search")
}

// fieldLabelText returns the text of labels associated with a field.
func fieldLabelText(n *livedom.Node) string {
	var parts []string
	if l := n.Closest(livedom.ByTag("label")); l != nil {
		parts = append(parts, l.Text())
	}
	if id := n.ID(); id != "" {
		labels, err := n.Document().QueryXPath("//label[@for=" + livedom.XPathLiteral(id) + "]")
		if err == nil {
			for _, l := range labels {
				parts = append(parts, l.Text())
			}
		}
	}
	return strings.Join(parts, " ")
}

func hasSearchIdentity(n *livedom.Node) bool {
	return identityContains(n, "search") || hasRole(n, "search")
}

func (s *scan) identifySearch() []Block {
	fields := s.root.QueryAll(func(n *livedom.Node) bool {
		return isSearchField(n) && n.IsVisible()
	})

	seen := make(map[*livedom.Node]bool)
	var blocks []Block
	for _, f := range fields {
		container := searchContainer(f)
		if container == nil || seen[container] {
			continue
		}
		seen[container] = true
		if container.Closest(isExplicitForm) != nil || insideAny(container, s.forms) {
			continue
		}
		blocks = append(blocks, newBlock(container, Search, Metadata{}))
	}
	return blocks
}

// searchContainer finds the enclosing search-identified element, falling
// back to the direct parent when it also holds a button.
func searchContainer(field *livedom.Node) *livedom.Node {
	parent := field.Parent()
	if parent == nil {
		return nil
	}
	if c := parent.Closest(hasSearchIdentity); c != nil && c.Tag() != "body" && c.Tag() != "html" {
		return c
	}
	if parent.Query(func(n *livedom.Node) bool { return n != field && IsButtonLike(n) }) != nil {
		return parent
	}
	return nil
}

// ---- navigation ----

func (s *scan) identifyNavigation() []Block {
	navs := s.root.QueryAll(func(n *livedom.Node) bool {
		return n.Tag() == "nav" || hasRole(n, "navigation")
	})
	var blocks []Block
	for _, n := range visibleOnly(outermost(navs)) {
		links := len(n.QueryAll(IsLink))
		blocks = append(blocks, newBlock(n, Navigation, Metadata{LinkCount: links}))
	}
	return blocks
}

// ---- sidebar ----

func (s *scan) identifySidebars() []Block {
	asides := s.root.QueryAll(func(n *livedom.Node) bool {
		return n.Tag() == "aside" || hasRole(n, "complementary") || identityContains(n, "sidebar")
	})
	var blocks []Block
	for _, n := range visibleOnly(outermost(asides)) {
		blocks = append(blocks, newBlock(n, Sidebar, Metadata{}))
	}
	return blocks
}

// ---- content ----

func isContentContainer(n *livedom.Node) bool {
	switch n.Tag() {
	case "article", "main":
		return true
	}
	return hasRole(n, "main", "article")
}

func (s *scan) identifyContent() []Block {
	var blocks []Block
	for _, n := range visibleOnly(outermost(s.root.QueryAll(isContentContainer))) {
		blocks = append(blocks, newBlock(n, Content, Metadata{}))
	}
	return blocks
}

// ---- action group ----

func (s *scan) identifyActions() []Block {
	cands := s.root.QueryAll(func(n *livedom.Node) bool {
		if IsButtonLike(n) || IsInputLike(n) || isExplicitForm(n) {
			return false
		}
		if !identityContains(n, "button", "action", "controls", "btn-group", "toolbar") {
			return false
		}
		if insideAny(n, s.forms) {
			return false
		}
		visible := 0
		for _, b := range n.QueryAll(IsButtonLike) {
			if b.IsVisible() {
				visible++
			}
		}
		return visible >= 2
	})
	var blocks []Block
	for _, n := range outermost(cands) {
		blocks = append(blocks, newBlock(n, Action, Metadata{Text: NormaliseText(n.Text())}))
	}
	return blocks
}

// ---- ad ----

var adAttrs = []string{"data-ad", "data-ad-slot", "data-ad-type", "data-ad-unit", "data-google-query-id"}

// isAd matches advertisement containers by id/class tokens and ad-slot
// marker attributes. Tokens are matched whole or by ad- prefix or -ad
// affix so that words like "header" or "download" do not trip it.
func isAd(n *livedom.Node) bool {
	for _, a := range adAttrs {
		if n.HasAttr(a) {
			return true
		}
	}
	if strings.HasPrefix(strings.ToLower(n.ID()), "google_ads") {
		return true
	}
	for _, tok := range identityTokens(n) {
		switch {
		case tok == "ad", tok == "ads", tok == "adsbygoogle":
			return true
		case strings.HasPrefix(tok, "ad-"), strings.HasPrefix(tok, "ads-"):
			return true
		case strings.HasSuffix(tok, "-ad"), strings.HasSuffix(tok, "-ads"), strings.Contains(tok, "-ad-"):
			return true
		case strings.Contains(tok, "advert"), strings.Contains(tok, "sponsor"):
			return true
		}
	}
	return false
}

func (s *scan) identifyAds() []Block {
	var blocks []Block
	for _, n := range outermost(s.root.QueryAll(isAd)) {
		blocks = append(blocks, newBlock(n, Ad, Metadata{}))
	}
	return blocks
}
