package attribution

import (
	"bytes"
	"context"
	"html/template"

	"github.com/radiusdt/impact-connector/internal/models"
)

// Widget zones the host renders fragments into.
const (
	ZoneHead                  = "head_html_tag"
	ZoneCheckoutConfirm       = "checkout_confirm_bottom"
	ZoneOnePageCheckoutBottom = "op_checkout_confirm_bottom"
)

// ClickIDCallbackPath is where the client fragment posts the click id.
const ClickIDCallbackPath = "/impact/clickid"

var fallbackTmpl = template.Must(template.New("fallback").Parse(`<script>
  if (typeof ire === 'function') {
    ire('generateClickId', function (clickId) {
      var body = new URLSearchParams();
      body.append('clickId', clickId);
      body.append('token', {{.Token}});
      fetch({{.CallbackURL}}, { method: 'POST', body: body, credentials: 'same-origin' });
    });
  }
</script>`))

// Renderer produces the HTML fragment for a widget zone.
type Renderer struct {
	capturer    *Capturer
	signer      *CallbackSigner
	callbackURL string
}

// NewRenderer creates a renderer whose fallback fragment posts to
// callbackURL with a token from signer.
func NewRenderer(capturer *Capturer, signer *CallbackSigner, callbackURL string) *Renderer {
	if callbackURL == "" {
		callbackURL = ClickIDCallbackPath
	}
	return &Renderer{capturer: capturer, signer: signer, callbackURL: callbackURL}
}

// Render returns the fragment for zone. Unknown zones render nothing.
func (r *Renderer) Render(ctx context.Context, zone string, s models.Settings, rc RequestContext) (string, error) {
	switch zone {
	case ZoneHead:
		return HeadScript(s, rc.Customer), nil

	case ZoneCheckoutConfirm, ZoneOnePageCheckoutBottom:
		outcome, err := r.capturer.Capture(ctx, s, rc)
		if err != nil {
			return "", err
		}
		if outcome != OutcomeFallback {
			return "", nil
		}
		token, err := r.signer.Sign(rc.Customer.ID)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		err = fallbackTmpl.Execute(&buf, struct {
			Token       string
			CallbackURL string
		}{token, r.callbackURL})
		if err != nil {
			return "", err
		}
		return buf.String(), nil

	default:
		return "", nil
	}
}
