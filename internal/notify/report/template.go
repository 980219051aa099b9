package report

const bodySource = `<h2>{{.Heading}}</h2>
<table style="width: 70%; border-collapse: collapse;" border="1" cellpadding="5">
<tbody style="font-family: Arial, sans-serif; font-size: 12px;">
<tr>
<td style="width: 22%; background-color: #f2f3f3;"><strong>Build Status</strong></td>
<td class="status"><strong><span style="color: {{.Color}};">{{.State}}</span></strong></td>
</tr>
{{- range .Rows}}
<tr>
<td style="width: 22%; background-color: #f2f3f3;"><strong>{{.Label}}</strong></td>
<td>{{.Value}}</td>
</tr>
{{- end}}
<tr>
<td style="width: 22%; background-color: #f2f3f3;"><strong>SOC S3 Path</strong></td>
<td>{{with .Log}}<a href="{{.URL}}">{{.Name}}</a>{{else}}not available{{end}}</td>
</tr>
</tbody>
</table>
<div class="notice">{{.Notice}}</div>
`
