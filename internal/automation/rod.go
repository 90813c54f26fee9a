package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Selectors for the campaign admin form. The form is a select2-based row
// editor: one row per assigned admin, with clone and delete buttons.
const (
	selEmail      = "input[name=email]"
	selPassword   = "input[name=password]"
	selSubmit     = "button[type=submit]"
	selDeleteRow  = "button.secondary.op-delete.icon-subtraction.delete"
	selCloneRow   = "button.secondary.op-clone.icon-addition.clone"
	selAdminRow   = "#app > form > section > article > div.columns.eight > div:nth-child(2) > div > div:nth-child(%d) .select2-arrow"
	selSaveButton = "#app > form > section > article > div.columns.four > div.card.has-sections > div.card-section.secondary.align-right > small > button:nth-child(2)"
)

// The dashboard occasionally re-renders the save area; these are tried in
// order when the primary save selector is missing.
var selSaveFallbacks = []string{
	selSaveButton,
	"div.card-section.secondary.align-right button",
	"form section button[type=submit]",
}

// Config holds everything the browser driver needs.
type Config struct {
	LoginURL        string
	CampaignBaseURL string
	Email           string
	Password        string
	Headless        bool
	NavTimeout      time.Duration
	StepDelay       time.Duration
}

func (c Config) navTimeout() time.Duration {
	if c.NavTimeout == 0 {
		return 30 * time.Second
	}
	return c.NavTimeout
}

func (c Config) stepDelay() time.Duration {
	if c.StepDelay == 0 {
		return 500 * time.Millisecond
	}
	return c.StepDelay
}

// Browser is a rod-backed Automator sharing one Chrome instance across all
// sessions it hands out.
type Browser struct {
	cfg     Config
	log     zerolog.Logger
	browser *rod.Browser
	cleanup func()
}

// NewBrowser launches Chrome and connects to it.
func NewBrowser(cfg Config, log zerolog.Logger) (*Browser, error) {
	l := launcher.New().Headless(cfg.Headless)
	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	return &Browser{
		cfg:     cfg,
		log:     log.With().Str("component", "browser").Logger(),
		browser: browser,
		cleanup: l.Cleanup,
	}, nil
}

func (b *Browser) NewSession(ctx context.Context) (Session, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, classify(fmt.Errorf("create page: %w", err))
	}
	return &rodSession{cfg: b.cfg, log: b.log, page: page}, nil
}

func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.cleanup != nil {
		b.cleanup()
	}
	return err
}

type rodSession struct {
	cfg    Config
	log    zerolog.Logger
	page   *rod.Page
	closed bool
}

func (s *rodSession) Login(ctx context.Context) error {
	page := s.page.Context(ctx).Timeout(s.cfg.navTimeout())

	if err := page.Navigate(s.cfg.LoginURL); err != nil {
		return classify(fmt.Errorf("navigate to login: %w", err))
	}
	if err := page.WaitLoad(); err != nil {
		return classify(fmt.Errorf("wait for login page: %w", err))
	}

	if err := s.fill(page, selEmail, s.cfg.Email); err != nil {
		return &AuthError{Err: err}
	}
	if err := s.fill(page, selPassword, s.cfg.Password); err != nil {
		return &AuthError{Err: err}
	}
	if err := s.click(page, selSubmit); err != nil {
		return &AuthError{Err: err}
	}
	if err := page.WaitIdle(s.cfg.navTimeout()); err != nil {
		return classify(fmt.Errorf("wait for dashboard: %w", err))
	}

	s.log.Info().Msg("login completed")
	return nil
}

func (s *rodSession) ProcessCampaign(ctx context.Context, campaignID int64, admins []string) error {
	if len(admins) == 0 {
		return fmt.Errorf("campaign %d: no admins to assign", campaignID)
	}

	page := s.page.Context(ctx).Timeout(s.cfg.navTimeout())
	url := fmt.Sprintf("%s%d", s.cfg.CampaignBaseURL, campaignID)

	if err := page.Navigate(url); err != nil {
		return classify(fmt.Errorf("navigate to campaign %d: %w", campaignID, err))
	}
	if err := page.WaitIdle(s.cfg.navTimeout()); err != nil {
		return classify(fmt.Errorf("campaign %d did not settle: %w", campaignID, err))
	}

	if err := s.clearRows(page, campaignID, len(admins)); err != nil {
		return err
	}
	if err := s.cloneRows(page, campaignID, len(admins)-1); err != nil {
		return err
	}
	if err := s.assignAdmins(page, campaignID, admins); err != nil {
		return err
	}

	if err := s.save(page, campaignID); err != nil {
		return err
	}

	s.log.Info().Int64("campaign", campaignID).Strs("admins", admins).Msg("campaign processed")
	return nil
}

// clearRows removes existing assignment rows. The form keeps one base row
// that cannot be deleted, so the loop stops as soon as the delete button
// disappears.
func (s *rodSession) clearRows(page *rod.Page, campaignID int64, max int) error {
	for i := 0; i < max; i++ {
		has, el, err := page.Has(selDeleteRow)
		if err != nil {
			return classify(fmt.Errorf("campaign %d: probe delete button: %w", campaignID, err))
		}
		if !has {
			break
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return classify(fmt.Errorf("campaign %d: delete row: %w", campaignID, err))
		}
		time.Sleep(s.cfg.stepDelay())
	}
	return nil
}

func (s *rodSession) cloneRows(page *rod.Page, campaignID int64, count int) error {
	for i := 0; i < count; i++ {
		if err := s.click(page, selCloneRow); err != nil {
			return classify(fmt.Errorf("campaign %d: clone row: %w", campaignID, err))
		}
		time.Sleep(s.cfg.stepDelay())
	}
	return nil
}

// assignAdmins opens each row's select2 widget, types the admin name and
// confirms with Enter.
func (s *rodSession) assignAdmins(page *rod.Page, campaignID int64, admins []string) error {
	for i, admin := range admins {
		sel := fmt.Sprintf(selAdminRow, i+1)
		if err := s.click(page, sel); err != nil {
			return classify(fmt.Errorf("campaign %d: open admin picker %d: %w", campaignID, i+1, err))
		}
		if err := page.InsertText(admin); err != nil {
			return classify(fmt.Errorf("campaign %d: type admin name: %w", campaignID, err))
		}
		if err := page.Keyboard.Type(input.Enter); err != nil {
			return classify(fmt.Errorf("campaign %d: confirm admin: %w", campaignID, err))
		}
		// Close the dropdown so it cannot swallow the next row's click.
		if err := page.Keyboard.Type(input.Escape); err != nil {
			return classify(fmt.Errorf("campaign %d: close admin picker: %w", campaignID, err))
		}
		time.Sleep(s.cfg.stepDelay())
	}
	return nil
}

// save clicks the first save button that exists on the page.
func (s *rodSession) save(page *rod.Page, campaignID int64) error {
	for _, sel := range selSaveFallbacks {
		has, el, err := page.Has(sel)
		if err != nil {
			return classify(fmt.Errorf("campaign %d: probe save button: %w", campaignID, err))
		}
		if !has {
			continue
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return classify(fmt.Errorf("campaign %d: save: %w", campaignID, err))
		}
		return nil
	}
	return fmt.Errorf("campaign %d: no save button found", campaignID)
}

func (s *rodSession) fill(page *rod.Page, selector, value string) error {
	el, err := page.Element(selector)
	if err != nil {
		return classify(fmt.Errorf("find %s: %w", selector, err))
	}
	if err := el.Input(value); err != nil {
		return classify(fmt.Errorf("fill %s: %w", selector, err))
	}
	return nil
}

func (s *rodSession) click(page *rod.Page, selector string) error {
	el, err := page.Element(selector)
	if err != nil {
		return classify(fmt.Errorf("find %s: %w", selector, err))
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(fmt.Errorf("click %s: %w", selector, err))
	}
	return nil
}

func (s *rodSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.page.Close()
}
