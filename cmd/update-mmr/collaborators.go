package main

import (
	"errors"

	"github.com/fossil-relay/mmr-accumulator/pkg/chainclient"
	"github.com/fossil-relay/mmr-accumulator/pkg/config"
	"github.com/fossil-relay/mmr-accumulator/pkg/headerstore"
	"github.com/fossil-relay/mmr-accumulator/pkg/proofgen"
)

// errNoCollaborator is returned by the stand-ins below. The header
// source, chain client, and zkVM are external collaborators (spec §1
// Non-goals) this module only defines interfaces for; a deployment
// links in its own implementations of headerstore.Store,
// chainclient.Client, and proofgen.StarkBackend in place of this file.
var errNoCollaborator = errors.New("update-mmr: no concrete implementation wired for this collaborator in this build")

// wireExternalCollaborators constructs the three out-of-repo
// dependencies a real deployment supplies.
func wireExternalCollaborators(cfg *config.Config) (headerstore.Store, chainclient.Client, proofgen.StarkBackend, error) {
	return nil, nil, nil, errNoCollaborator
}
