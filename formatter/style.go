package formatter

const stylesheet = `body { margin: 0; background: #f4f5f7; color: #222; font-family: Georgia, "Times New Roman", serif; line-height: 1.6; }
.document { max-width: 880px; margin: 2em auto; padding: 2.5em 3em; background: #fff; box-shadow: 0 1px 4px rgba(0,0,0,0.12); }
.doc-header { border-bottom: 3px solid #2E86AB; margin-bottom: 1.2em; }
.doc-header h1 { margin: 0 0 0.2em; font-size: 2em; color: #1d3557; }
.doc-header .subtitle { margin: 0 0 0.8em; font-size: 1.1em; color: #5c677d; letter-spacing: 0.04em; }
.doc-meta { width: 100%; border-collapse: collapse; margin-bottom: 2em; font-size: 0.9em; }
.doc-meta th { width: 9em; text-align: left; color: #5c677d; font-weight: normal; padding: 0.25em 0; }
.doc-meta td { padding: 0.25em 0; }
.doc-body h2 { margin-top: 1.8em; font-size: 1.35em; color: #1d3557; border-bottom: 1px solid #dde1e7; padding-bottom: 0.2em; }
.doc-body h3, .doc-body h4 { margin-top: 1.4em; color: #1d3557; }
.doc-body strong { color: #1d3557; }
.doc-body em { color: #a23b72; }
.note { margin: 1em 0; padding: 0.8em 1em; background: #fff8e6; border-left: 4px solid #f18f01; }
.chart { margin: 1.5em 0; text-align: center; }
.chart img { max-width: 100%; height: auto; border: 1px solid #e5e7eb; }
.chart figcaption { font-size: 0.85em; color: #5c677d; margin-top: 0.4em; }
.chart-appendix { margin-top: 2.5em; }
.doc-footer { margin-top: 3em; padding-top: 1em; border-top: 1px solid #dde1e7; font-size: 0.8em; color: #7a8599; }
`
