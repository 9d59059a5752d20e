package main

import (
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/workerhost/testing/kongtest"
)

func TestHelp(t *testing.T) {
	s := kongtest.Help(t, &cli{})
	assert.Check(t, cmp.Contains(s, "--environment="))
	assert.Check(t, cmp.Contains(s, "--o11y-format="))
	assert.Check(t, !cmp.Contains(s, "--shutdown-delay")().Success())
}

func TestHostArgs(t *testing.T) {
	c := cli{}
	kongtest.Parse(t, &c, "--environment=Staging", "--content-root=/srv/calc", "--set", "bus.prefetch=4")

	assert.Check(t, cmp.DeepEqual([]string{
		"--environment", "Staging",
		"--content-root", "/srv/calc",
		"--set", "bus.prefetch=4",
	}, c.hostArgs()))
}

func TestHostArgs_Defaults(t *testing.T) {
	c := cli{}
	kongtest.Parse(t, &c)

	assert.Check(t, cmp.DeepEqual([]string{"--environment", "Production"}, c.hostArgs()))
	assert.Check(t, cmp.Equal(c.ShutdownDelay.String(), "5s"))
}
