// Package secrets redacts credentials from text before it leaves the server.
//
// Two detectors run over the same input. A fixed set of regular expression
// rules catches the common token formats cheaply. When enabled, the gitleaks
// default rule set runs as a second pass. Matches from both are merged and
// replaced with a single marker, so overlapping hits never leak a fragment.
package secrets
