// Package testutil builds ePO policy exports for tests.
package testutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
)

// Setting is a name/value pair inside a section.
type Setting struct {
	Name  string
	Value string
}

// Section is a named list of settings.
type Section struct {
	Name     string
	Settings []Setting
}

// S builds a section from alternating name/value pairs.
func S(name string, kv ...string) Section {
	if len(kv)%2 != 0 {
		panic("testutil.S: odd number of name/value arguments")
	}
	sec := Section{Name: name}
	for i := 0; i < len(kv); i += 2 {
		sec.Settings = append(sec.Settings, Setting{Name: kv[i], Value: kv[i+1]})
	}
	return sec
}

// Props expands firewall properties into settings. Arguments alternate
// name and value; a string value is a scalar, a []string value becomes the
// "_Name" count followed by "+Name#i" entries.
func Props(kv ...any) []Setting {
	if len(kv)%2 != 0 {
		panic("testutil.Props: odd number of arguments")
	}
	var out []Setting
	for i := 0; i < len(kv); i += 2 {
		name := kv[i].(string)
		switch v := kv[i+1].(type) {
		case string:
			out = append(out, Setting{Name: name, Value: v})
		case []string:
			out = append(out, Setting{Name: "_" + name, Value: strconv.Itoa(len(v))})
			for j, item := range v {
				out = append(out, Setting{Name: fmt.Sprintf("+%s#%d", name, j), Value: item})
			}
		default:
			panic(fmt.Sprintf("testutil.Props: unsupported value type %T", v))
		}
	}
	return out
}

// Block is one EPOPolicySettings element.
type Block struct {
	Name     string
	ParamInt string
	ParamStr string
	Sections []Section
}

// PolicyBuilder assembles one policy object and its settings blocks.
type PolicyBuilder struct {
	Server  string
	Product string
	Type    string
	Name    string
	Blocks  []Block
	// Unreferenced blocks are written to the document but not listed as
	// PolicySettings of the object.
	Unreferenced []Block
}

// NewPolicy starts a policy builder.
func NewPolicy(product, typeID, name string) *PolicyBuilder {
	return &PolicyBuilder{Server: "EPO-TEST", Product: product, Type: typeID, Name: name}
}

// Settings adds a plain settings block (param_int 0) holding sections.
func (b *PolicyBuilder) Settings(blockName string, sections ...Section) *PolicyBuilder {
	b.Blocks = append(b.Blocks, Block{Name: blockName, Sections: sections})
	return b
}

// Block adds a settings block with explicit discriminators.
func (b *PolicyBuilder) Block(blk Block) *PolicyBuilder {
	b.Blocks = append(b.Blocks, blk)
	return b
}

// XML renders the policy as a standalone export.
func (b *PolicyBuilder) XML() []byte {
	return Bundle(b)
}

// Bundle renders several policies under one root.
func Bundle(policies ...*PolicyBuilder) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<EPOPolicySchema xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation="EPOPolicySchema.xsd">` + "\n")
	buf.WriteString(`  <EPOPolicyVerInfo vermjr="5" vermin="10" verrel="0" verbld="2428"/>` + "\n")

	for _, p := range policies {
		for _, blk := range p.Blocks {
			writeBlock(&buf, p, blk)
		}
		for _, blk := range p.Unreferenced {
			writeBlock(&buf, p, blk)
		}
	}
	for _, p := range policies {
		fmt.Fprintf(&buf, `  <EPOPolicyObject serverid="%s" name="%s" featureid="%s" typeid="%s">`+"\n",
			esc(p.Server), esc(p.Name), esc(p.Product), esc(p.Type))
		for _, blk := range p.Blocks {
			fmt.Fprintf(&buf, "    <PolicySettings>%s</PolicySettings>\n", esc(blk.Name))
		}
		buf.WriteString("  </EPOPolicyObject>\n")
	}
	buf.WriteString("</EPOPolicySchema>\n")
	return buf.Bytes()
}

func writeBlock(buf *bytes.Buffer, p *PolicyBuilder, blk Block) {
	paramInt := blk.ParamInt
	if paramInt == "" {
		paramInt = "0"
	}
	fmt.Fprintf(buf, `  <EPOPolicySettings name="%s" featureid="%s" typeid="%s" param_int="%s" param_str="%s">`+"\n",
		esc(blk.Name), esc(p.Product), esc(p.Type), esc(paramInt), esc(blk.ParamStr))
	for _, sec := range blk.Sections {
		fmt.Fprintf(buf, `    <Section name="%s">`+"\n", esc(sec.Name))
		for _, st := range sec.Settings {
			fmt.Fprintf(buf, `      <Setting name="%s" value="%s"/>`+"\n", esc(st.Name), esc(st.Value))
		}
		buf.WriteString("    </Section>\n")
	}
	buf.WriteString("  </EPOPolicySettings>\n")
}

func esc(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
