package notify

import "price-monitor/internal/domain"

type templateSource struct {
	subject string
	text    string
	html    string
}

const htmlFooter = `<p style="color:#888;font-size:12px">You are receiving this because you track this product.</p>`

// builtinTemplates holds one template set per notifiable event kind.
var builtinTemplates = map[domain.EventKind]templateSource{
	domain.EventBackInStock: {
		subject: `{{.Title}} is back in stock!`,
		text: `Good news: {{.Title}} is available again.

Current price: {{.Currency}}{{.CurrentPrice}}
Buy it here: {{.URL}}
`,
		html: `<div>
<h2>{{.Title}} is back in stock!</h2>
{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Title}}" style="max-width:240px"/>{{end}}
<p>Current price: <strong>{{.Currency}}{{.CurrentPrice}}</strong></p>
<p><a href="{{.URL}}">Buy it now</a></p>
` + htmlFooter + `
</div>`,
	},
	domain.EventNewLowestPrice: {
		subject: `Lowest price alert for {{.Title}}`,
		text: `{{.Title}} just hit its lowest price ever.

New price: {{.Currency}}{{.CurrentPrice}} (was {{.Currency}}{{.PreviousPrice}})
Highest seen: {{.Currency}}{{.HighestPrice}}
Average: {{.Currency}}{{.AveragePrice}}
Buy it here: {{.URL}}
`,
		html: `<div>
<h2>Lowest price ever for {{.Title}}</h2>
{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Title}}" style="max-width:240px"/>{{end}}
<p>New price: <strong>{{.Currency}}{{.CurrentPrice}}</strong> (was {{.Currency}}{{.PreviousPrice}})</p>
<p>Highest seen: {{.Currency}}{{.HighestPrice}}, average: {{.Currency}}{{.AveragePrice}}</p>
<p><a href="{{.URL}}">Buy it now</a></p>
` + htmlFooter + `
</div>`,
	},
	domain.EventPriceDrop: {
		subject: `Price drop: {{.Title}} is now {{.Currency}}{{.CurrentPrice}}`,
		text: `The price of {{.Title}} dropped {{.DropPercent}}%.

Now: {{.Currency}}{{.CurrentPrice}} (was {{.Currency}}{{.PreviousPrice}})
Lowest seen: {{.Currency}}{{.LowestPrice}}
Buy it here: {{.URL}}
`,
		html: `<div>
<h2>Price drop on {{.Title}}</h2>
{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Title}}" style="max-width:240px"/>{{end}}
<p>Now <strong>{{.Currency}}{{.CurrentPrice}}</strong>, down {{.DropPercent}}% from {{.Currency}}{{.PreviousPrice}}.</p>
<p>Lowest seen: {{.Currency}}{{.LowestPrice}}</p>
<p><a href="{{.URL}}">Buy it now</a></p>
` + htmlFooter + `
</div>`,
	},
	domain.EventSourceUnavailable: {
		subject: `We could not check {{.Title}}`,
		text: `The product page for {{.Title}} could not be reached during the latest check.
We will try again on the next run.

Last known price: {{.Currency}}{{.CurrentPrice}}
Product page: {{.URL}}
`,
		html: `<div>
<h2>We could not check {{.Title}}</h2>
<p>The product page could not be reached during the latest check. We will try again on the next run.</p>
<p>Last known price: {{.Currency}}{{.CurrentPrice}}</p>
<p><a href="{{.URL}}">Product page</a></p>
` + htmlFooter + `
</div>`,
	},
}
