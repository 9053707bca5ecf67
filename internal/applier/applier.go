package applier

import (
	"encoding/json"

	"github.com/agentflare-ai/jsoncrdt/internal/compiler"
	"github.com/agentflare-ai/jsoncrdt/internal/errs"
	"github.com/agentflare-ai/jsoncrdt/internal/materialize"
	"github.com/agentflare-ai/jsoncrdt/internal/node"
	"github.com/agentflare-ai/jsoncrdt/internal/pointer"
)

// applyCtx bundles the two documents one Apply call resolves paths
// against. headDoc is mutated in place; baseDoc supplies the element
// identity a patch's integer array indices were computed relative to
// (spec.md §4.6) — the snapshot ApplyOptions.Base names, or headDoc
// itself when no base was given. sameDoc is true in that common case,
// where baseDoc can never diverge from headDoc mid-batch because they
// are the same pointer; array-index resolution then reads headCache's
// incrementally-maintained live ordering exactly as before. When
// sameDoc is false, baseDoc is a read-only snapshot that never mutates
// during Apply, so baseCache only ever needs to linearize each touched
// sequence once.
type applyCtx struct {
	headDoc   *node.Doc
	baseDoc   *node.Doc
	headCache *seqCache
	baseCache *seqCache
	sameDoc   bool
}

// Apply executes intents against headDoc in place, minting dots from
// minter and resolving Test intents against either headDoc or baseJSON
// per opts.TestAgainst. Every array-index token — an ArrInsert/
// ArrDelete/ArrReplace intent's own Index, and any array-index path
// segment encountered while locating a container — is resolved against
// baseDoc's linearization and then checked for presence in headDoc, per
// spec.md §4.6: this is what lets a patch diffed against a prior
// snapshot keep applying correctly once head has since diverged from
// it. baseDoc nil is treated as "the current head", the common case. It
// stops at the first failing intent and returns an *errs.OpError with
// OpIndex set to that intent's position; headDoc may have been
// partially mutated by earlier intents in the slice (the state façade
// is responsible for snapshotting headDoc before calling Apply if
// atomicity across the whole patch is required, per spec.md §4.6).
func Apply(headDoc, baseDoc *node.Doc, baseJSON any, intents []compiler.Intent, minter *Minter, opts compiler.Options) error {
	if baseDoc == nil {
		baseDoc = headDoc
	}
	ctx := &applyCtx{
		headDoc:   headDoc,
		baseDoc:   baseDoc,
		headCache: newSeqCache(),
		baseCache: newSeqCache(),
		sameDoc:   baseDoc == headDoc,
	}
	for i, intent := range intents {
		if err := applyOne(ctx, baseJSON, intent, minter, opts); err != nil {
			if oe, ok := err.(*errs.OpError); ok {
				return oe.WithOpIndex(i)
			}
			return errs.New(errs.UnsupportedOp, intent.Path, err.Error()).WithOpIndex(i)
		}
	}
	return nil
}

func applyOne(ctx *applyCtx, baseJSON any, intent compiler.Intent, minter *Minter, opts compiler.Options) error {
	switch intent.Kind {
	case compiler.KindTest:
		return applyTest(ctx, baseJSON, intent, opts)
	case compiler.KindObjSet:
		return applyObjSet(ctx, intent, minter)
	case compiler.KindObjRemove:
		return applyObjRemove(ctx, intent, minter)
	case compiler.KindArrInsert:
		return applyArrInsert(ctx, intent, minter, opts)
	case compiler.KindArrDelete:
		return applyArrDelete(ctx, intent, minter)
	case compiler.KindArrReplace:
		return applyArrReplace(ctx, intent, minter)
	default:
		return errs.New(errs.UnsupportedOp, intent.Path, "unsupported intent kind")
	}
}

// elemIDAtIndex resolves idx against the sequence at path: head's own
// incrementally-maintained cache when ctx.sameDoc (the ordinary case,
// identical to resolving purely against head), or base's one-shot
// cached linearization otherwise — baseNode never mutates mid-batch, so
// no incremental maintenance is needed there. baseNode may be nil (the
// base side of the walk ran out of matching structure), in which case
// this falls back to head, matching "absent in base" at the lookup
// site rather than panicking on a nil sequence.
func elemIDAtIndex(ctx *applyCtx, path string, headNode, baseNode *node.Node, idx int) (string, bool) {
	if idx < 0 {
		return "", false
	}
	if ctx.sameDoc || baseNode == nil || baseNode.Kind != node.KindSeq {
		ids := ctx.headCache.get(path, headNode)
		if idx >= len(ids) {
			return "", false
		}
		return ids[idx], true
	}
	ids := ctx.baseCache.get(path, baseNode)
	if idx >= len(ids) {
		return "", false
	}
	return ids[idx], true
}

// lastLiveID returns the append-predecessor ID: base's last live element
// when diverged, or head's (incrementally maintained) last element
// otherwise. ok is false for an empty sequence (append predecessor is
// then node.Head).
func lastLiveID(ctx *applyCtx, path string, headNode, baseNode *node.Node) (string, bool) {
	if ctx.sameDoc || baseNode == nil || baseNode.Kind != node.KindSeq {
		ids := ctx.headCache.get(path, headNode)
		if len(ids) == 0 {
			return "", false
		}
		return ids[len(ids)-1], true
	}
	ids := ctx.baseCache.get(path, baseNode)
	if len(ids) == 0 {
		return "", false
	}
	return ids[len(ids)-1], true
}

// objChild returns n's live child at key, or nil if n is not an object
// or has no such entry — used to keep a base-side walk alongside a
// head-side one without erroring when the two have diverged.
func objChild(n *node.Node, key string) *node.Node {
	if n == nil || n.Kind != node.KindObj {
		return nil
	}
	if e, ok := n.ObjGet(key); ok {
		return e.Node
	}
	return nil
}

// seqChild is objChild's sequence-element counterpart.
func seqChild(n *node.Node, id string) *node.Node {
	if n == nil || n.Kind != node.KindSeq {
		return nil
	}
	if e, ok := n.SeqElem(id); ok {
		return e.Value
	}
	return nil
}

// resolveContainer walks path from ctx.headDoc.Root, consulting
// ctx.baseDoc's matching subtree to resolve any array-index token along
// the way, and returns the head node found at path (whatever its Kind).
// An empty path resolves to the document root.
func resolveContainer(ctx *applyCtx, path string) (*node.Node, error) {
	head, _, err := resolveBothOrRoot(ctx, path)
	return head, err
}

// resolveBothOrRoot is resolveContainer's internal form: it also returns
// the base doc's node at the same path (nil once the base side runs out
// of matching structure), so callers that need to keep walking past
// path (ensureSeqContainer's grandparent lookup, the array-intent
// functions' own trailing index) can continue the parallel walk without
// re-parsing from the root.
func resolveBothOrRoot(ctx *applyCtx, path string) (*node.Node, *node.Node, error) {
	if ctx.headDoc.Root == nil {
		return nil, nil, errs.New(errs.MissingParent, path, "document root is empty")
	}
	if path == "" {
		var base *node.Node
		if ctx.baseDoc != nil {
			base = ctx.baseDoc.Root
		}
		return ctx.headDoc.Root, base, nil
	}

	toks, err := pointer.Parse(path)
	if err != nil {
		return nil, nil, errs.New(errs.InvalidPointer, path, err.Error())
	}
	curHead := ctx.headDoc.Root
	var curBase *node.Node
	if ctx.baseDoc != nil {
		curBase = ctx.baseDoc.Root
	}
	var soFar pointer.Pointer
	for _, tok := range toks {
		switch curHead.Kind {
		case node.KindObj:
			entry, ok := curHead.ObjGet(tok)
			if !ok {
				return nil, nil, errs.New(errs.MissingParent, soFar.Child(tok).String(), "missing object parent")
			}
			curHead = entry.Node
			curBase = objChild(curBase, tok)
		case node.KindSeq:
			idx, ok := pointer.ParseArrayIndex(tok)
			if !ok {
				return nil, nil, errs.New(errs.InvalidPointer, soFar.Child(tok).String(), "invalid array index token")
			}
			id, ok := elemIDAtIndex(ctx, soFar.String(), curHead, curBase, idx)
			if !ok {
				return nil, nil, errs.New(errs.OutOfBounds, soFar.Child(tok).String(), "array index out of bounds")
			}
			elem, ok := curHead.SeqElem(id)
			if !ok {
				return nil, nil, errs.New(errs.MissingParent, soFar.Child(tok).String(), "missing array element")
			}
			curHead = elem.Value
			curBase = seqChild(curBase, id)
		default:
			return nil, nil, errs.New(errs.InvalidTarget, soFar.String(), "parent is not a container")
		}
		soFar = soFar.Child(tok)
	}
	return curHead, curBase, nil
}

// ensureSeqContainer resolves the sequence at path, auto-creating it (as
// a fresh empty KindSeq written into its object parent) when it is
// missing from both head and base and autoCreate allows it. Scope
// matches spec.md §4.6 exactly: only the final segment may be
// auto-created, only when its own parent already resolves as an
// object, and only when base has no sequence there either — a path
// missing from head but still present in base is a real divergence, not
// an auto-create case. Returns the head sequence node plus its base
// counterpart (nil if base has no matching sequence), since array-intent
// callers need both to map their own trailing index.
func ensureSeqContainer(ctx *applyCtx, path string, autoCreate bool, minter *Minter) (*node.Node, *node.Node, error) {
	if path == "" {
		if ctx.headDoc.Root == nil {
			if !autoCreate {
				return nil, nil, errs.New(errs.MissingParent, path, "document root is empty")
			}
			ctx.headDoc.Root = node.NewSeq()
		}
		var base *node.Node
		if ctx.baseDoc != nil {
			base = ctx.baseDoc.Root
		}
		return ctx.headDoc.Root, base, nil
	}

	toks, err := pointer.Parse(path)
	if err != nil {
		return nil, nil, errs.New(errs.InvalidPointer, path, err.Error())
	}
	parentToks, token := toks.Parent()
	grandparentHead, grandparentBase, err := resolveBothOrRoot(ctx, parentToks.String())
	if err != nil {
		return nil, nil, err
	}

	switch grandparentHead.Kind {
	case node.KindObj:
		entry, ok := grandparentHead.ObjGet(token)
		if ok {
			if entry.Node.Kind != node.KindSeq {
				return nil, nil, errs.New(errs.InvalidTarget, path, "existing value at path is not a sequence")
			}
			return entry.Node, objChild(grandparentBase, token), nil
		}
		if !autoCreate || objChild(grandparentBase, token) != nil {
			return nil, nil, errs.New(errs.MissingParent, path, "missing array parent")
		}
		seq := node.NewSeq()
		node.ObjSet(grandparentHead, token, seq, minter.NextDot())
		return seq, nil, nil
	case node.KindSeq:
		idx, ok := pointer.ParseArrayIndex(token)
		if !ok {
			return nil, nil, errs.New(errs.InvalidPointer, path, "invalid array index token")
		}
		id, ok := elemIDAtIndex(ctx, parentToks.String(), grandparentHead, grandparentBase, idx)
		if !ok {
			return nil, nil, errs.New(errs.OutOfBounds, path, "array index out of bounds")
		}
		elem, ok := grandparentHead.SeqElem(id)
		if !ok {
			return nil, nil, errs.New(errs.MissingParent, path, "missing array element")
		}
		if elem.Value.Kind != node.KindSeq {
			return nil, nil, errs.New(errs.InvalidTarget, path, "existing value at path is not a sequence")
		}
		return elem.Value, seqChild(grandparentBase, id), nil
	default:
		return nil, nil, errs.New(errs.InvalidTarget, path, "parent is not a container")
	}
}

func applyObjSet(ctx *applyCtx, intent compiler.Intent, minter *Minter) error {
	if intent.Key == compiler.RootKey {
		root, err := node.BuildFromJSON(intent.Value, minter)
		if err != nil {
			return err
		}
		ctx.headDoc.Root = root
		return nil
	}

	container, err := resolveContainer(ctx, intent.Path)
	if err != nil {
		return err
	}
	if container.Kind != node.KindObj {
		return errs.New(errs.InvalidTarget, intent.Path, "ObjSet parent is not an object")
	}
	if intent.Mode == compiler.ModeReplace {
		if _, ok := container.ObjGet(intent.Key); !ok {
			return errs.New(errs.MissingTarget, intent.Path+"/"+intent.Key, "replace target does not exist")
		}
	}
	child, err := node.BuildFromJSON(intent.Value, minter)
	if err != nil {
		return err
	}
	node.ObjSet(container, intent.Key, child, minter.NextDot())
	return nil
}

func applyObjRemove(ctx *applyCtx, intent compiler.Intent, minter *Minter) error {
	container, err := resolveContainer(ctx, intent.Path)
	if err != nil {
		return err
	}
	if container.Kind != node.KindObj {
		return errs.New(errs.InvalidTarget, intent.Path, "ObjRemove parent is not an object")
	}
	if _, ok := container.ObjGet(intent.Key); !ok {
		return errs.New(errs.MissingTarget, intent.Path+"/"+intent.Key, "remove target does not exist")
	}
	node.ObjRemove(container, intent.Key, minter.NextDot())
	return nil
}

func applyArrInsert(ctx *applyCtx, intent compiler.Intent, minter *Minter, opts compiler.Options) error {
	autoCreate := !opts.StrictParents && (intent.Index == 0 || intent.Index == compiler.IndexAppend)
	headContainer, baseContainer, err := ensureSeqContainer(ctx, intent.Path, autoCreate, minter)
	if err != nil {
		return err
	}

	var prev string
	switch {
	case intent.Index == compiler.IndexAppend:
		if id, ok := lastLiveID(ctx, intent.Path, headContainer, baseContainer); ok {
			prev = id
		} else {
			prev = node.Head
		}
	case intent.Index == 0:
		prev = node.Head
	default:
		id, ok := elemIDAtIndex(ctx, intent.Path, headContainer, baseContainer, intent.Index-1)
		if !ok {
			return errs.New(errs.MissingParent, intent.Path, "insert index has no predecessor in base sequence")
		}
		prev = id
	}
	if prev != node.Head {
		if _, ok := headContainer.SeqElem(prev); !ok {
			return errs.New(errs.MissingParent, intent.Path, "insert predecessor not present in head sequence")
		}
	}

	child, err := node.BuildFromJSON(intent.Value, minter)
	if err != nil {
		return err
	}
	dot, err := minter.NextSeqInsertDot(headContainer, prev)
	if err != nil {
		return err
	}
	id := node.DotToElemID(dot)
	if err := node.RGAInsertAfter(headContainer, prev, id, dot, child); err != nil {
		return errs.New(errs.MissingParent, intent.Path, err.Error())
	}

	if ctx.sameDoc {
		ids := ctx.headCache.get(intent.Path, headContainer)
		pos := intent.Index
		if pos == compiler.IndexAppend || pos > len(ids) {
			pos = len(ids)
		}
		ctx.headCache.insertAt(intent.Path, pos, id)
	}
	return nil
}

func applyArrDelete(ctx *applyCtx, intent compiler.Intent, minter *Minter) error {
	headContainer, baseContainer, err := resolveBothOrRoot(ctx, intent.Path)
	if err != nil {
		return err
	}
	if headContainer.Kind != node.KindSeq {
		return errs.New(errs.InvalidTarget, intent.Path, "ArrDelete parent is not a sequence")
	}
	id, ok := elemIDAtIndex(ctx, intent.Path, headContainer, baseContainer, intent.Index)
	if !ok {
		return errs.New(errs.OutOfBounds, intent.Path, "delete index out of bounds")
	}
	elem, ok := headContainer.SeqElem(id)
	if !ok || elem.Tombstone {
		return errs.New(errs.MissingTarget, intent.Path, "delete target is not live in head")
	}
	node.RGADelete(headContainer, id, minter.NextDot())
	if ctx.sameDoc {
		ctx.headCache.deleteAt(intent.Path, intent.Index)
	}
	return nil
}

func applyArrReplace(ctx *applyCtx, intent compiler.Intent, minter *Minter) error {
	headContainer, baseContainer, err := resolveBothOrRoot(ctx, intent.Path)
	if err != nil {
		return err
	}
	if headContainer.Kind != node.KindSeq {
		return errs.New(errs.InvalidTarget, intent.Path, "ArrReplace parent is not a sequence")
	}
	oldID, ok := elemIDAtIndex(ctx, intent.Path, headContainer, baseContainer, intent.Index)
	if !ok {
		return errs.New(errs.OutOfBounds, intent.Path, "replace index out of bounds")
	}
	oldElem, ok := headContainer.SeqElem(oldID)
	if !ok || oldElem.Tombstone {
		return errs.New(errs.MissingTarget, intent.Path, "replace target is not live in head")
	}
	prev := oldElem.Prev

	child, err := node.BuildFromJSON(intent.Value, minter)
	if err != nil {
		return err
	}
	node.RGADelete(headContainer, oldID, minter.NextDot())
	insDot, err := minter.NextSeqInsertDot(headContainer, prev)
	if err != nil {
		return err
	}
	newID := node.DotToElemID(insDot)
	if err := node.RGAInsertAfter(headContainer, prev, newID, insDot, child); err != nil {
		return errs.New(errs.MissingParent, intent.Path, err.Error())
	}
	if ctx.sameDoc {
		ctx.headCache.replaceAt(intent.Path, intent.Index, newID)
	}
	return nil
}

func applyTest(ctx *applyCtx, baseJSON any, intent compiler.Intent, opts compiler.Options) error {
	var actual any

	if opts.TestAgainst == compiler.TestAgainstBase {
		toks, err := pointer.Parse(intent.Path)
		if err != nil {
			return errs.New(errs.TestFailed, intent.Path, "invalid test path")
		}
		v, err := pointer.Get(baseJSON, toks)
		if err != nil {
			return errs.New(errs.TestFailed, intent.Path, "test path does not resolve against base")
		}
		actual = v
	} else {
		n, err := resolveContainer(ctx, intent.Path)
		if err != nil {
			return errs.New(errs.TestFailed, intent.Path, "test path does not resolve against head")
		}
		v, err := materialize.Node(n)
		if err != nil {
			return errs.New(errs.TestFailed, intent.Path, err.Error())
		}
		actual = v
	}

	actualBytes, err := json.Marshal(actual)
	if err != nil {
		return errs.New(errs.TestFailed, intent.Path, "test actual value is not JSON-serializable")
	}
	expectedBytes, err := json.Marshal(intent.Value)
	if err != nil {
		return errs.New(errs.TestFailed, intent.Path, "test expected value is not JSON-serializable")
	}
	if string(actualBytes) != string(expectedBytes) {
		return errs.New(errs.TestFailed, intent.Path, "test value mismatch")
	}
	return nil
}
