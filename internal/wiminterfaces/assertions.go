package wiminterfaces

import (
	"github.com/openwim/wimcore/internal/codec/dentry"
	"github.com/openwim/wimcore/internal/codec/reparse"
	"github.com/openwim/wimcore/internal/codec/security"
	"github.com/openwim/wimcore/internal/codec/taggeditems"
	"github.com/openwim/wimcore/internal/pattern"
)

var (
	_ DentryCodec        = dentry.Codec{}
	_ SecurityDataCodec  = security.Codec{}
	_ ReparsePointCodec  = reparse.Codec{}
	_ TaggedItemCodec    = taggeditems.Codec{}
	_ PatternMatcher     = pattern.Matcher{}
)
