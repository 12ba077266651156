package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mosaicnetworks/synod/src/peers"
	"github.com/spf13/cobra"
)

//NewPeersCmd returns the command that prints the cluster described by a hosts
//file
func NewPeersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Print the cluster table",
		RunE:  printPeers,
	}

	cmd.Flags().String("datadir", _config.Synod.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("cluster", _config.Synod.ClusterFile, "Cluster hosts file")

	return cmd
}

func printPeers(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	_config.Synod.SetDataDir(_config.Synod.DataDir)

	peerSet, err := peers.NewTextPeerSet(_config.Synod.ClusterFile).PeerSet()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tUSERNAME\tPROPOSER\tACCEPTOR\tLEARNER")
	for _, p := range peerSet.Peers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			p.ID,
			p.Username,
			p.ProposerAddr(),
			p.AcceptorAddr(),
			p.LearnerAddr())
	}

	fmt.Fprintf(w, "\n%d peers, majority of %d\n", peerSet.Len(), peerSet.MajoritySize())

	return w.Flush()
}
