package deck

const (
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsP   = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsRel = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsCT  = "http://schemas.openxmlformats.org/package/2006/content-types"

	relTypeBase        = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
	relTypeSlide       = relTypeBase + "slide"
	relTypeSlideLayout = relTypeBase + "slideLayout"
	relTypeImage       = relTypeBase + "image"
	relTypeCoreProps   = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"

	ctSlide = "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"
	ctCore  = "application/vnd.openxmlformats-package.core-properties+xml"

	tableGraphicURI = "http://schemas.openxmlformats.org/drawingml/2006/table"
	// Medium Style 2 - Accent 1, the default table style in PowerPoint.
	defaultTableStyleID = "{5C22544A-7EE6-4342-B048-85BDC9FD1C3A}"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
	nsDecl    = `xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `"`
)

const (
	partContentTypes = "[Content_Types].xml"
	partPresentation = "ppt/presentation.xml"
	partCore         = "docProps/core.xml"
	defaultLayout    = "ppt/slideLayouts/slideLayout1.xml"
)

const emptySpTree = `<p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
	`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr></p:spTree>`

const coreXML = xmlHeader +
	`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
	`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
	`xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
	`<dc:title></dc:title><dc:creator></dc:creator><cp:revision>1</cp:revision></cp:coreProperties>`

const slideXML = xmlHeader + `<p:sld ` + nsDecl + `><p:cSld>` + emptySpTree +
	`</p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`

// skeletonPart is one file of the blank package, in archive order.
type skeletonPart struct {
	name string
	body string
}

func skeletonParts() []skeletonPart {
	return []skeletonPart{
		{partContentTypes, xmlHeader + `<Types xmlns="` + nsCT + `">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>` +
			`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>` +
			`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>` +
			`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>` +
			`<Override PartName="/ppt/presProps.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presProps+xml"/>` +
			`<Override PartName="/ppt/viewProps.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml"/>` +
			`<Override PartName="/ppt/tableStyles.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.tableStyles+xml"/>` +
			`<Override PartName="/docProps/core.xml" ContentType="` + ctCore + `"/>` +
			`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>` +
			`</Types>`},
		{"_rels/.rels", xmlHeader + `<Relationships xmlns="` + nsRel + `">` +
			`<Relationship Id="rId1" Type="` + relTypeBase + `officeDocument" Target="ppt/presentation.xml"/>` +
			`<Relationship Id="rId2" Type="` + relTypeCoreProps + `" Target="docProps/core.xml"/>` +
			`<Relationship Id="rId3" Type="` + relTypeBase + `extended-properties" Target="docProps/app.xml"/>` +
			`</Relationships>`},
		{"docProps/app.xml", xmlHeader +
			`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" ` +
			`xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">` +
			`<Application>report-deck</Application><PresentationFormat>On-screen Show (16:9)</PresentationFormat></Properties>`},
		{partCore, coreXML},
		{partPresentation, xmlHeader + `<p:presentation ` + nsDecl + ` saveSubsetFonts="1">` +
			`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>` +
			`<p:sldIdLst/>` +
			`<p:sldSz cx="9144000" cy="5143500"/><p:notesSz cx="6858000" cy="9144000"/>` +
			`</p:presentation>`},
		{"ppt/_rels/presentation.xml.rels", xmlHeader + `<Relationships xmlns="` + nsRel + `">` +
			`<Relationship Id="rId1" Type="` + relTypeBase + `slideMaster" Target="slideMasters/slideMaster1.xml"/>` +
			`<Relationship Id="rId2" Type="` + relTypeBase + `theme" Target="theme/theme1.xml"/>` +
			`<Relationship Id="rId3" Type="` + relTypeBase + `presProps" Target="presProps.xml"/>` +
			`<Relationship Id="rId4" Type="` + relTypeBase + `viewProps" Target="viewProps.xml"/>` +
			`<Relationship Id="rId5" Type="` + relTypeBase + `tableStyles" Target="tableStyles.xml"/>` +
			`</Relationships>`},
		{"ppt/presProps.xml", xmlHeader + `<p:presentationPr ` + nsDecl + `/>`},
		{"ppt/viewProps.xml", xmlHeader + `<p:viewPr ` + nsDecl + `><p:gridSpacing cx="76200" cy="76200"/></p:viewPr>`},
		{"ppt/tableStyles.xml", xmlHeader + `<a:tblStyleLst xmlns:a="` + nsA + `" def="` + defaultTableStyleID + `"/>`},
		{"ppt/slideMasters/slideMaster1.xml", xmlHeader + `<p:sldMaster ` + nsDecl + `>` +
			`<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg>` + emptySpTree + `</p:cSld>` +
			`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" ` +
			`accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
			`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>` +
			`<p:txStyles><p:titleStyle><a:lvl1pPr><a:defRPr sz="4400"/></a:lvl1pPr></p:titleStyle>` +
			`<p:bodyStyle><a:lvl1pPr><a:defRPr sz="1800"/></a:lvl1pPr></p:bodyStyle>` +
			`<p:otherStyle><a:lvl1pPr><a:defRPr sz="1800"/></a:lvl1pPr></p:otherStyle></p:txStyles>` +
			`</p:sldMaster>`},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", xmlHeader + `<Relationships xmlns="` + nsRel + `">` +
			`<Relationship Id="rId1" Type="` + relTypeSlideLayout + `" Target="../slideLayouts/slideLayout1.xml"/>` +
			`<Relationship Id="rId2" Type="` + relTypeBase + `theme" Target="../theme/theme1.xml"/>` +
			`</Relationships>`},
		{defaultLayout, xmlHeader + `<p:sldLayout ` + nsDecl + ` type="blank" preserve="1">` +
			`<p:cSld name="Blank">` + emptySpTree + `</p:cSld>` +
			`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", xmlHeader + `<Relationships xmlns="` + nsRel + `">` +
			`<Relationship Id="rId1" Type="` + relTypeBase + `slideMaster" Target="../slideMasters/slideMaster1.xml"/>` +
			`</Relationships>`},
		{"ppt/theme/theme1.xml", themeXML},
	}
}

const themeXML = xmlHeader + `<a:theme xmlns:a="` + nsA + `" name="Office Theme"><a:themeElements>` +
	`<a:clrScheme name="Office">` +
	`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>` +
	`<a:dk2><a:srgbClr val="44546A"/></a:dk2><a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>` +
	`<a:accent1><a:srgbClr val="4472C4"/></a:accent1><a:accent2><a:srgbClr val="ED7D31"/></a:accent2>` +
	`<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3><a:accent4><a:srgbClr val="FFC000"/></a:accent4>` +
	`<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5><a:accent6><a:srgbClr val="70AD47"/></a:accent6>` +
	`<a:hlink><a:srgbClr val="0563C1"/></a:hlink><a:folHlink><a:srgbClr val="954F72"/></a:folHlink>` +
	`</a:clrScheme>` +
	`<a:fontScheme name="Office">` +
	`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/><a:font script="Hang" typeface="맑은 고딕"/></a:majorFont>` +
	`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/><a:font script="Hang" typeface="맑은 고딕"/></a:minorFont>` +
	`</a:fontScheme>` +
	`<a:fmtScheme name="Office">` +
	`<a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst>` +
	`<a:lnStyleLst><a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst>` +
	`<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>` +
	`<a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst>` +
	`</a:fmtScheme></a:themeElements><a:objectDefaults/><a:extraClrSchemeLst/></a:theme>`
