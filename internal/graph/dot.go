package graph

import (
	"github.com/emicklei/dot"

	"github.com/nao1215/spidercrab/internal/model"
)

// Node colours.
const (
	colorGood      = "green"
	colorBad       = "red"
	colorUnvisited = "black"
	colorUnparsed  = "orange"
)

// RenderDOT renders the link graph of r as a directed Graphviz graph.
//
// There is one node per URL, labelled with the URL. Node colour shows the
// fetch result: green for a parsed page, orange for a successful fetch that
// was not parsed, red for a failure and black for a URL that was never
// fetched. Edges are labelled with the reference kind and skipped references
// are dashed.
func RenderDOT(r *model.CheckReport) string {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")

	nodes := make(map[string]dot.Node)
	node := func(u string) dot.Node {
		if n, ok := nodes[u]; ok {
			return n
		}
		n := g.Node(u).Attr("color", colorUnvisited)
		nodes[u] = n
		return n
	}

	for _, p := range r.Pages {
		n := node(p.URL).Attr("color", pageColor(p))
		if p.Title != "" {
			n.Attr("tooltip", p.Title)
		}
	}
	for _, e := range r.Edges {
		edge := g.Edge(node(e.From), node(e.To), e.Kind.String())
		if e.Skip {
			edge.Attr("style", "dashed")
		}
	}
	return g.String()
}

func pageColor(p model.PageResult) string {
	switch {
	case p.Status != model.StatusSuccess:
		return colorBad
	case p.Parsed:
		return colorGood
	default:
		return colorUnparsed
	}
}
