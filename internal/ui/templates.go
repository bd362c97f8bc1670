package ui

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Prefix is the path the UI is mounted under.
const Prefix = "/ui"

// Template functions available in all templates.
var templateFuncs = template.FuncMap{
	"prefix": func() string { return Prefix },
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"formatTimePtr": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return humanize.Time(t)
	},
	"stateColor": func(state fmt.Stringer) string {
		switch strings.ToUpper(state.String()) {
		case "PENDING":
			return "bg-yellow-100 text-yellow-800"
		case "RUNNING":
			return "bg-blue-100 text-blue-800"
		case "COMPLETED":
			return "bg-green-100 text-green-800"
		case "FAILED":
			return "bg-red-100 text-red-800"
		default:
			return "bg-gray-100 text-gray-800"
		}
	},
	"percent": func(a, b int) int {
		if b == 0 {
			return 100
		}
		return min(100, (a*100)/b)
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
}

// renderTemplate renders a page inside the layout.
func renderTemplate(w io.Writer, name string, data map[string]any) error {
	content, ok := templates[name]
	if !ok {
		return fmt.Errorf("template not found: %s", name)
	}

	tmpl, err := template.New("layout").Funcs(templateFuncs).Parse(templates["layout"])
	if err != nil {
		return fmt.Errorf("parse layout: %w", err)
	}
	if _, err := tmpl.New("jobTable").Parse(templates["components/job_table"]); err != nil {
		return fmt.Errorf("parse job table: %w", err)
	}
	if _, err := tmpl.New("content").Parse(content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}
	return tmpl.Execute(w, data)
}

var templates = map[string]string{
	"layout": `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 min-h-screen">
    <nav class="bg-white shadow-sm border-b">
        <div class="max-w-7xl mx-auto px-4 sm:px-6 lg:px-8">
            <div class="flex h-16">
                <a href="{{prefix}}/" class="flex items-center px-2 text-xl font-bold text-indigo-600">gosched</a>
                <div class="ml-6 flex space-x-8">
                    <a href="{{prefix}}/" class="inline-flex items-center px-1 pt-1 text-sm font-medium text-gray-500 hover:text-gray-700">Dashboard</a>
                    <a href="{{prefix}}/jobs/" class="inline-flex items-center px-1 pt-1 text-sm font-medium text-gray-500 hover:text-gray-700">Jobs</a>
                </div>
            </div>
        </div>
    </nav>
    <main class="max-w-7xl mx-auto py-6 sm:px-6 lg:px-8">
        {{template "content" .}}
    </main>
</body>
</html>`,

	"components/job_table": `{{define "jobTable"}}
<table class="min-w-full divide-y divide-gray-200">
    <thead class="bg-gray-50">
        <tr>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">ID</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Name</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Algorithm</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Status</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Priority</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Progress</th>
            <th class="px-4 py-2 text-left text-xs font-medium text-gray-500 uppercase">Created</th>
        </tr>
    </thead>
    <tbody class="bg-white divide-y divide-gray-200">
        {{range .}}
        <tr>
            <td class="px-4 py-2 text-sm"><a href="{{prefix}}/jobs/{{.ID}}" class="text-indigo-600 hover:underline">{{.ID}}</a></td>
            <td class="px-4 py-2 text-sm text-gray-900">{{truncate .Name 40}}</td>
            <td class="px-4 py-2 text-sm text-gray-500">{{.Algorithm}}</td>
            <td class="px-4 py-2 text-sm"><span class="px-2 rounded-full text-xs font-semibold {{stateColor .Status}}">{{.Status}}</span></td>
            <td class="px-4 py-2 text-sm text-gray-500">{{.Priority}}</td>
            <td class="px-4 py-2 text-sm text-gray-500">{{percent .Consumed .ExecutionTime}}%</td>
            <td class="px-4 py-2 text-sm text-gray-500" title="{{formatTime .CreatedAt}}">{{ago .CreatedAt}}</td>
        </tr>
        {{else}}
        <tr><td colspan="7" class="px-4 py-6 text-center text-sm text-gray-500">No jobs found.</td></tr>
        {{end}}
    </tbody>
</table>
{{end}}`,

	"dashboard": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900 mb-6">Dashboard</h1>

    <div class="bg-white shadow rounded-lg p-5 mb-6">
        <h2 class="text-lg font-medium text-gray-900">Scheduler</h2>
        {{if .Configured}}
        <p class="mt-2 text-sm">
            {{if .Scheduler.Running}}<span class="text-green-700 font-semibold">running</span>{{else}}<span class="text-gray-500 font-semibold">stopped</span>{{end}}
            &middot; {{.Scheduler.ActiveJobs}} active &middot; {{.Scheduler.TotalPending}} queued
        </p>
        <dl class="mt-3 grid grid-cols-2 gap-4 sm:grid-cols-4">
            {{range .Algorithms}}
            <div>
                <dt class="text-xs text-gray-500 uppercase">{{.}}</dt>
                <dd class="text-xl font-semibold text-gray-900">{{index $.Scheduler.PendingByAlgorithm .}}</dd>
            </div>
            {{end}}
        </dl>
        {{else}}
        <p class="mt-2 text-sm text-gray-500">No scheduler attached.</p>
        {{end}}
        <p class="mt-3 text-xs text-gray-400">Uptime {{.Uptime}}</p>
    </div>

    <div class="grid grid-cols-2 gap-5 sm:grid-cols-5 mb-8">
        {{range .Statuses}}
        <a href="{{prefix}}/jobs/?status={{.}}" class="bg-white shadow rounded-lg p-4 hover:bg-gray-50">
            <div class="text-xs text-gray-500 uppercase">{{.}}</div>
            <div class="text-2xl font-semibold text-gray-900">{{index $.Counts .}}</div>
        </a>
        {{end}}
    </div>

    <div class="bg-white shadow rounded-lg">
        <div class="px-4 py-3 border-b flex justify-between">
            <h2 class="text-lg font-medium text-gray-900">Recent jobs</h2>
            <a href="{{prefix}}/jobs/" class="text-sm text-indigo-600">All {{.Total}} jobs</a>
        </div>
        {{template "jobTable" .RecentJobs}}
    </div>
</div>
{{end}}`,

	"jobs": `{{define "content"}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900 mb-6">Jobs{{if .Status}} &middot; {{.Status}}{{end}}</h1>
    <div class="bg-white shadow rounded-lg">
        {{template "jobTable" .Jobs}}
    </div>
    <div class="mt-4 flex justify-between text-sm">
        <span class="text-gray-500">{{.Pagination.Total}} jobs</span>
        <span>
            {{if .Pagination.HasPrev}}<a href="{{prefix}}/jobs/?status={{.Status}}&offset={{.Pagination.PrevOffset}}" class="text-indigo-600">Previous</a>{{end}}
            {{if .Pagination.HasMore}}<a href="{{prefix}}/jobs/?status={{.Status}}&offset={{.Pagination.NextOffset}}" class="ml-4 text-indigo-600">Next</a>{{end}}
        </span>
    </div>
</div>
{{end}}`,

	"job": `{{define "content"}}
{{with .Job}}
<div class="px-4 py-6 sm:px-0">
    <h1 class="text-2xl font-semibold text-gray-900">{{.Name}}
        <span class="ml-2 px-2 rounded-full text-sm font-semibold {{stateColor .Status}}">{{.Status}}</span>
    </h1>
    {{if .Description}}<p class="mt-1 text-sm text-gray-500">{{.Description}}</p>{{end}}
    <dl class="mt-6 bg-white shadow rounded-lg p-5 grid grid-cols-1 gap-4 sm:grid-cols-3">
        <div><dt class="text-xs text-gray-500 uppercase">ID</dt><dd class="text-sm">{{.ID}}</dd></div>
        <div><dt class="text-xs text-gray-500 uppercase">Algorithm</dt><dd class="text-sm">{{.Algorithm}}</dd></div>
        <div><dt class="text-xs text-gray-500 uppercase">Priority</dt><dd class="text-sm">{{.Priority}}</dd></div>
        <div><dt class="text-xs text-gray-500 uppercase">Work</dt><dd class="text-sm">{{.Consumed}}s of {{.ExecutionTime}}s</dd></div>
        <div><dt class="text-xs text-gray-500 uppercase">Created</dt><dd class="text-sm">{{formatTime .CreatedAt}}</dd></div>
        <div><dt class="text-xs text-gray-500 uppercase">Started</dt><dd class="text-sm">{{formatTimePtr .StartedAt}}</dd></div>
        <div><dt class="text-xs text-gray-500 uppercase">Finished</dt><dd class="text-sm">{{formatTimePtr .CompletedAt}}</dd></div>
    </dl>
    {{if .Script}}
    <h2 class="mt-6 text-lg font-medium text-gray-900">Script</h2>
    <pre class="mt-2 bg-gray-900 text-gray-100 text-sm rounded p-3 overflow-x-auto">{{.Script}}</pre>
    {{end}}
    {{if .Result}}
    <h2 class="mt-6 text-lg font-medium text-gray-900">Result</h2>
    <pre class="mt-2 bg-white shadow text-sm rounded p-3 whitespace-pre-wrap">{{.Result}}</pre>
    {{end}}
    {{if .ErrorMessage}}
    <h2 class="mt-6 text-lg font-medium text-red-700">Error</h2>
    <pre class="mt-2 bg-red-50 text-red-800 text-sm rounded p-3 whitespace-pre-wrap">{{.ErrorMessage}}</pre>
    {{end}}
</div>
{{end}}
{{end}}`,

	"error": `{{define "content"}}
<div class="px-4 py-12 text-center">
    <h1 class="text-2xl font-semibold text-gray-900">{{.Message}}</h1>
    <a href="{{prefix}}/" class="mt-4 inline-block text-indigo-600">Back to dashboard</a>
</div>
{{end}}`,
}
