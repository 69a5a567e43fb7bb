package pushdisplay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/byNolo/nolofication/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Display
	}{
		{
			name: "full payload",
			raw:  `{"title":"Deploy","body":"done","icon":"/i.png","badge":"/b.png","type":"success","site":"CI"}`,
			want: Display{Title: "Deploy", Body: "done", Icon: "/i.png", Badge: "/b.png", Tag: "success", Type: "success", Site: "CI"},
		},
		{
			name: "message used when body missing",
			raw:  `{"title":"Hi","message":"from message"}`,
			want: Display{Title: "Hi", Body: "from message", Icon: DefaultIcon, Badge: DefaultBadge, Tag: DefaultTag},
		},
		{
			name: "body wins over message",
			raw:  `{"body":"b","message":"m"}`,
			want: Display{Title: DefaultTitle, Body: "b", Icon: DefaultIcon, Badge: DefaultBadge, Tag: DefaultTag},
		},
		{
			name: "empty object",
			raw:  `{}`,
			want: Display{Title: DefaultTitle, Body: DefaultBody, Icon: DefaultIcon, Badge: DefaultBadge, Tag: DefaultTag},
		},
		{
			name: "plain text",
			raw:  "server restarted",
			want: Display{Title: "Notification", Body: "server restarted", Icon: DefaultIcon, Badge: DefaultBadge, Tag: DefaultTag},
		},
		{
			name: "blank strings ignored",
			raw:  `{"title":"  ","body":""}`,
			want: Display{Title: DefaultTitle, Body: DefaultBody, Icon: DefaultIcon, Badge: DefaultBadge, Tag: DefaultTag},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse([]byte(tt.raw)))
		})
	}
}

func TestHTMLEscapes(t *testing.T) {
	d := Parse([]byte(`{"title":"<b>x</b>","body":"a & b","type":"warning","site":"S"}`))
	assert.Equal(t, "⚠️ <b>&lt;b&gt;x&lt;/b&gt;</b>\na &amp; b\n\n<i>S</i>", d.HTML())
}

func TestFromNotification(t *testing.T) {
	d := FromNotification(domain.Notification{ID: 1, Type: "error", SiteID: "s1"})
	assert.Equal(t, DefaultTitle, d.Title)
	assert.Equal(t, DefaultBody, d.Body)
	assert.Equal(t, "error", d.Tag)
	assert.Equal(t, "s1", d.Site)
}
