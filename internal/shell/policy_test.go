package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDenylist = []string{"rm", "sudo", "curl", "dd"}

func TestPolicy_Check(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		permissive bool
		wantErr    error
		reason     string
	}{
		{name: "plain command", command: "ls -la"},
		{name: "excluded command", command: "rm -rf build", wantErr: ErrCommandNotAllowed, reason: `"rm" is excluded`},
		{name: "excluded by path", command: "/bin/rm x", wantErr: ErrCommandNotAllowed, reason: `"/bin/rm" is excluded`},
		{name: "excluded wrapper", command: "sudo ls", wantErr: ErrCommandNotAllowed, reason: `"sudo" is excluded`},
		{name: "wrapped excluded command", command: "env FOO=1 rm x", wantErr: ErrCommandNotAllowed, reason: `"rm" is excluded`},
		{name: "timeout wrapper", command: "timeout 5 dd if=/dev/zero", wantErr: ErrCommandNotAllowed, reason: `"dd" is excluded`},
		{name: "excluded name as argument", command: "grep rm notes.txt"},
		{name: "operators inside single quotes", command: "echo 'a && b | c'"},
		{name: "pipe in strict mode", command: "ls | wc -l", wantErr: ErrCommandNotAllowed, reason: `shell operator "|" is not permitted`},
		{name: "chain in strict mode", command: "ls && pwd", wantErr: ErrCommandNotAllowed, reason: `shell operator "&&" is not permitted`},
		{name: "substitution inside double quotes", command: `echo "$(whoami)"`, wantErr: ErrCommandNotAllowed, reason: `shell operator "$(" is not permitted`},
		{name: "redirect in strict mode", command: "echo hi > out.txt", wantErr: ErrCommandNotAllowed},
		{name: "newline in strict mode", command: "ls\npwd", wantErr: ErrCommandNotAllowed, reason: `shell operator "newline" is not permitted`},
		{name: "pipe in permissive mode", command: "ls | wc -l", permissive: true},
		{name: "redirect in permissive mode", command: "echo hi > out.txt", permissive: true},
		{name: "excluded after pipe", command: "ls | rm x", permissive: true, wantErr: ErrCommandNotAllowed, reason: `"rm" is excluded`},
		{name: "excluded after semicolon", command: "pwd;curl example.com", permissive: true, wantErr: ErrCommandNotAllowed, reason: `"curl" is excluded`},
		{name: "excluded in substitution", command: "echo $(rm x)", permissive: true, wantErr: ErrCommandNotAllowed, reason: `"rm" is excluded`},
		{name: "excluded in backticks", command: "echo `sudo id`", permissive: true, wantErr: ErrCommandNotAllowed, reason: `"sudo" is excluded`},
		{name: "variable in strict mode", command: "$X a", wantErr: ErrCommandNotAllowed, reason: `shell operator "$" is not permitted`},
		{name: "variable inside double quotes", command: `echo "$HOME"`, wantErr: ErrCommandNotAllowed, reason: `shell operator "$" is not permitted`},
		{name: "variable inside single quotes", command: "echo '$HOME'"},
		{name: "escaped dollar", command: `echo \$HOME`},
		{name: "glob in program name", command: "/bin/r? b", wantErr: ErrCommandNotAllowed, reason: `program name "/bin/r?" uses shell expansion`},
		{name: "star in program name", command: "r* b", wantErr: ErrCommandNotAllowed, reason: `program name "r*" uses shell expansion`},
		{name: "bracket in program name", command: "/bin/[r]m b", wantErr: ErrCommandNotAllowed, reason: `program name "/bin/[r]m" uses shell expansion`},
		{name: "brace in program name", command: "/bin/{rm,ls} b", wantErr: ErrCommandNotAllowed, reason: `program name "/bin/{rm,ls}" uses shell expansion`},
		{name: "tilde in program name", command: "~/bin/tool", wantErr: ErrCommandNotAllowed, reason: `program name "~/bin/tool" uses shell expansion`},
		{name: "wrapped glob", command: "nice r? b", wantErr: ErrCommandNotAllowed, reason: `program name "r?" uses shell expansion`},
		{name: "glob in argument", command: "ls *.go"},
		{name: "test bracket", command: "[ -f go.mod ]"},
		{name: "variable in permissive mode", command: "echo $HOME", permissive: true},
		{name: "variable program after pipe", command: "ls | $X a", permissive: true, wantErr: ErrCommandNotAllowed, reason: `program name "$X" uses shell expansion`},
		{name: "empty", command: "   ", wantErr: ErrMalformedCommand},
		{name: "unbalanced quote", command: `echo "oops`, wantErr: ErrMalformedCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(testDenylist, tt.permissive)
			_, err := p.Check(tt.command)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var pe *PolicyError
			require.ErrorAs(t, err, &pe)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, pe.Reason)
			}
		})
	}
}

func TestPolicy_AllowDeny(t *testing.T) {
	p := NewPolicy(testDenylist, false)

	_, err := p.Check("rm x")
	require.Error(t, err)

	p.Allow("rm")
	_, err = p.Check("rm x")
	assert.NoError(t, err)

	p.Deny("ls")
	_, err = p.Check("ls")
	assert.ErrorIs(t, err, ErrCommandNotAllowed)

	assert.Equal(t, []string{"curl", "dd", "ls", "sudo"}, p.Excluded())
}

func TestPolicy_DenyIsIdempotent(t *testing.T) {
	p := NewPolicy(nil, false)
	p.Deny("nc")
	p.Deny("nc")
	p.Allow("not-there")
	assert.Equal(t, []string{"nc"}, p.Excluded())
}

func TestParse(t *testing.T) {
	cmd, err := Parse(`grep -r "hello world" ./src`)
	require.NoError(t, err)
	assert.Equal(t, []string{"grep", "-r", "hello world", "./src"}, cmd.Words)
	assert.False(t, cmd.HasOperators())

	cmd, err = Parse("make build && make test 2>&1")
	require.NoError(t, err)
	assert.Equal(t, []string{"&&", ">", "&"}, cmd.Operators)
}

func TestCommand_IsChangeDir(t *testing.T) {
	for command, want := range map[string]bool{
		"cd":            true,
		"cd /tmp":       true,
		"cd ~/src":      true,
		"cd a b":        false,
		"cd /tmp && ls": false,
		"cdrecord":      false,
		"ls /tmp":       false,
	} {
		cmd, err := Parse(command)
		require.NoError(t, err, command)
		assert.Equal(t, want, cmd.IsChangeDir(), command)
	}
}

func TestProgramWords(t *testing.T) {
	assert.Equal(t, []string{"nice", "rm"}, programWords([]string{"nice", "-n", "10", "rm", "-rf", "x"}))
	assert.Equal(t, []string{"ls"}, programWords([]string{"2>/dev/null", "LANG=C", "ls", "-l"}))
	assert.Equal(t, []string{"cat"}, programWords([]string{">", "out", "cat"}))
	assert.Nil(t, programWords(nil))
}
