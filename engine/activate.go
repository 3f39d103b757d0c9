package engine

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hazyhaar/elderly/actionzone"
	"github.com/hazyhaar/elderly/chrome"
	"github.com/hazyhaar/elderly/livewatch"
	"github.com/hazyhaar/elderly/rules"
	"github.com/hazyhaar/elderly/semantic"
	"github.com/hazyhaar/elderly/styles"
)

// Report describes one activation.
type Report struct {
	RunID      string            `json:"run_id"`
	Site       string            `json:"site"`
	Generation Generation        `json:"generation"`
	RuleSource rules.Source      `json:"rule_source"`
	Strategy   semantic.Strategy `json:"strategy"`
	Analysis   *semantic.Report  `json:"analysis,omitempty"`
	Bindings   int               `json:"bindings"`
	Hidden     int               `json:"hidden"`
	// SelectorErrors lists rule predicates skipped as malformed.
	SelectorErrors []string `json:"selector_errors,omitempty"`
	// Degraded is set when the full treatment failed and the fallback ran.
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// Activate applies the configured treatment. An active engine is torn
// down first. Failures of the treatment fall back to basic mode and a
// transient notice; a failure of the fallback leaves the page untouched
// apart from a persistent notice and returns an ErrFatal error.
func (e *Engine) Activate(ctx context.Context) (*Report, error) {
	if e.state != Uninitialized {
		e.logger.Info("engine: restarting", "state", e.state.String())
		e.Teardown()
	}
	e.doc.SetGlobal(ActiveFlag, true)

	rep := &Report{RunID: e.deps.NewID(), Generation: e.cfg.Generation, Site: siteOf(e.doc.URL)}
	log := e.logger.With("run_id", rep.RunID)
	log.Info("engine: activating", "site", rep.Site, "generation", string(e.cfg.Generation))

	doc := rules.Default()
	rep.RuleSource = rules.SourceDefault
	if e.deps.Rules != nil && rep.Site != "" {
		doc, rep.RuleSource = e.deps.Rules.Resolve(ctx, rep.Site)
	}

	err := safely(func() error {
		if e.cfg.Generation == GenerationRules {
			return e.applyRules(doc, rep)
		}
		return e.applySemantic(doc, rep)
	})
	if err != nil {
		log.Error("engine: treatment failed, falling back to basic mode", "error", err)
		e.Teardown()
		rep.Degraded = true
		rep.Error = err.Error()
		rep.Bindings, rep.Hidden, rep.Analysis = 0, 0, nil
		if ferr := safely(e.applyFallback); ferr != nil {
			log.Error("engine: fallback failed", "error", ferr)
			e.Teardown()
			if n, nerr := chrome.ShowNotice(e.doc, chrome.MsgFatal, 0); nerr == nil {
				e.notices = append(e.notices, n)
			}
			e.state = TornDown
			e.last = rep
			return rep, fmt.Errorf("%w: %v (after %v)", ErrFatal, ferr, err)
		}
		if n, nerr := chrome.ShowNotice(e.doc, chrome.MsgDegraded, e.cfg.NoticeTTL); nerr == nil {
			e.notices = append(e.notices, n)
		}
	}

	e.state = Active
	e.last = rep
	log.Info("engine: active",
		"strategy", string(rep.Strategy), "bindings", rep.Bindings,
		"hidden", rep.Hidden, "rules", string(rep.RuleSource), "degraded", rep.Degraded)
	return rep, nil
}

func (e *Engine) applySemantic(doc rules.Document, rep *Report) error {
	if err := e.check("analyze"); err != nil {
		return err
	}
	a := semantic.Analyze(e.doc, e.cfg.Policy)
	r := a.Report()
	rep.Analysis = &r
	rep.Strategy = a.Strategy

	if err := e.base(); err != nil {
		return err
	}
	if doc.HighContrast {
		if err := e.highContrast(); err != nil {
			return err
		}
	}
	for _, b := range a.Zones.Remove {
		e.ledger.hide(b.Node)
	}
	for _, b := range a.Zones.Content {
		e.ledger.addClass(b.Node, styles.ClassContentBlock)
	}
	rep.Hidden = e.ledger.hidden

	if a.Strategy == semantic.Split {
		if err := e.split(e.cfg.Materializer, a.Zones.Action, rep); err != nil {
			return err
		}
	}
	return e.mountToggle()
}

func (e *Engine) applyRules(doc rules.Document, rep *Report) error {
	if err := e.check("rules"); err != nil {
		return err
	}
	rep.Strategy = semantic.EnlargeOnly
	if err := e.ledger.style(e.doc, styles.Base(e.cfg.Tuning)); err != nil {
		return err
	}

	if doc.RemoveAds {
		remove, keep, errs := doc.Compile()
		for _, err := range errs {
			e.logger.Warn("engine: skipping malformed rule predicate", "error", err)
			rep.SelectorErrors = append(rep.SelectorErrors, err.Error())
		}
		root := e.doc.Root().Raw()
		for _, sel := range remove {
			for _, raw := range sel.MatchAll(root) {
				kept := false
				for _, k := range keep {
					if k.Match(raw) {
						kept = true
						break
					}
				}
				if !kept {
					e.ledger.hide(e.doc.Wrap(raw))
				}
			}
		}
	}
	rep.Hidden = e.ledger.hidden

	if doc.EnlargeText {
		e.ledger.addClass(e.doc.DocumentElement(), styles.ClassActive)
	}
	if doc.Split() {
		body := e.doc.Body()
		if body == nil {
			return fmt.Errorf("engine: split layout: document has no body")
		}
		rep.Strategy = semantic.Split
		flat := semantic.Block{Node: body, Kind: semantic.Action, Atomic: true}
		if err := e.split(actionzone.Proxy, []semantic.Block{flat}, rep); err != nil {
			return err
		}
	}
	if doc.HighContrast {
		if err := e.highContrast(); err != nil {
			return err
		}
	}
	return e.mountToggle()
}

// applyFallback is the basic mode: base styles, enlarged text and the
// toggle, nothing else.
func (e *Engine) applyFallback() error {
	if err := e.check("fallback"); err != nil {
		return err
	}
	if err := e.base(); err != nil {
		return err
	}
	return e.mountToggle()
}

func (e *Engine) base() error {
	root := e.doc.DocumentElement()
	if root == nil {
		return fmt.Errorf("engine: document has no root element")
	}
	if err := e.ledger.style(e.doc, styles.Base(e.cfg.Tuning)); err != nil {
		return err
	}
	e.ledger.addClass(root, styles.ClassActive)
	return nil
}

func (e *Engine) highContrast() error {
	if err := e.ledger.style(e.doc, styles.HighContrast()); err != nil {
		return err
	}
	e.ledger.addClass(e.doc.DocumentElement(), styles.ClassHighContrast)
	return nil
}

// split lays out the two zones, materializes the action blocks and arms
// the watcher.
func (e *Engine) split(m actionzone.Materializer, action []semantic.Block, rep *Report) error {
	if err := e.ledger.style(e.doc, styles.SplitLayout(e.cfg.Tuning)); err != nil {
		return err
	}
	e.ledger.addClass(e.doc.DocumentElement(), styles.ClassSplit)

	if err := e.check("materialize"); err != nil {
		return err
	}
	z, err := actionzone.Mount(e.doc, actionzone.Config{
		Materializer: m,
		PollInterval: e.cfg.PollInterval,
	}, e.deps.Logger)
	if err != nil {
		return err
	}
	e.zone = z
	rep.Bindings = z.Materialize(action)
	if z.Len() == 0 {
		z.ShowPlaceholder()
	}

	if err := e.check("watch"); err != nil {
		return err
	}
	w, err := livewatch.Start(e.doc, z, livewatch.Config{
		Debounce: e.cfg.Debounce,
		OnExtend: func(b []*actionzone.Binding) {
			if e.last != nil {
				e.last.Bindings += len(b)
			}
		},
	}, e.deps.Logger)
	if err != nil {
		return err
	}
	e.watch = w
	return nil
}

func (e *Engine) mountToggle() error {
	if err := e.check("toggle"); err != nil {
		return err
	}
	t, err := chrome.MountToggle(e.doc, e.cfg.Confirm, func() {
		if err := e.Exit(); err != nil {
			e.logger.Error("engine: exit failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	e.toggle = t
	return nil
}

func siteOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return rules.NormalizeSite(u.Host)
}
