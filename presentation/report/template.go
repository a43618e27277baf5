package report

import "fmt"

func Render(title, openedAt, closedAt, category, asset, severity, status, playbook, summary, rootCause, followUps, evidence, timeline string) string {
	return fmt.Sprintf(`
# %s

## Opened

%s

## Closed

%s

## Category

%s

## Affected asset

%s

## Severity

%s

## Final status

%s

## Playbook

%s

## Summary

%s

## Root cause

%s

## Follow-up actions

%s

## Evidence

%s

## Timeline

%s
`, title, openedAt, closedAt, category, asset, severity, status, playbook, summary, rootCause, followUps, evidence, timeline)
}
